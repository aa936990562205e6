package testutil

// Lab files in the layouts instruments produce. Each uses a different
// delimiter or header shape.
const (
	// SweepTSV is a tab separated sweep with scalar, literal and array headers.
	SweepTSV = "date\t'2024-03-01'\n" +
		"temperature\t4.2\n" +
		"gains\t[1.0, 2.5, 10.0]\n" +
		"frequencies\t100\t200\t300\n" +
		"\n" +
		"f\tx\ty\n" +
		"1.0\t0.5\t-0.5\n" +
		"2.0\t0.25\t-0.25\n" +
		"3.0\t0.125\t-0.125\n"

	// RaggedCSV has columns of different lengths, short ones padded with _.
	RaggedCSV = "operator,'alice'\n" +
		"\n" +
		"t,v,i\n" +
		"0,1.5,0.1\n" +
		"1,1.6,_\n" +
		"2,_,_\n"

	// NoKeysWhitespace has data but no column-key line.
	NoKeysWhitespace = "gain 3\n" +
		"1 2 3\n" +
		"4 5 6\n"

	// RaggedWhitespace is space separated with a short middle row.
	RaggedWhitespace = "x y\n" +
		"1 2\n" +
		"3\n" +
		"5 6\n"

	// HeaderOnly has no data line at all.
	HeaderOnly = "instrument 'lockin'\n" +
		"notes 'calibration pending'\n"

	// ComplexTSV holds a complex-valued column.
	ComplexTSV = "f\tz\n" +
		"1.0\t(1+2j)\n" +
		"2.0\t(3-4j)\n"

	// Regression holds the columns the script determinism check runs on.
	Regression = "column_0\tcolumn_1\n" +
		"85\t0.158\n" +
		"90\t0.225\n" +
		"95\t1.17\n" +
		"100\t2.43\n" +
		"105\t4.1667\n"

	// RegressionScript and RegressionExpected are the script determinism
	// check, rounded to one decimal.
	RegressionScript = "3.0 + x/y - self[0] where x=2.0*c(0); y=c(1)"
)

// RegressionExpected is what RegressionScript yields on Regression.
var RegressionExpected = []float64{993.9, 713.0, 70.4, -14.7, -51.6}
