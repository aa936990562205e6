package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	jsonpool "github.com/labkit/databox/pkg/json"
	"github.com/labkit/databox/pkg/testutil"
)

type CLISuite struct {
	testutil.FileSuite
	sweep  string
	ragged string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.sweep = s.CreateFile("sweep.txt", testutil.SweepTSV)
	s.ragged = s.CreateFile("ragged.csv", testutil.RaggedCSV)
}

// run executes the command line and returns stdout.
func (s *CLISuite) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(s.Context())
	return out.String(), err
}

func (s *CLISuite) TestVersion() {
	out, err := s.run("version")
	s.Require().NoError(err)
	s.Contains(out, "databox v"+version)
	s.Contains(out, "arrow, parquet, avro, json")
}

func (s *CLISuite) TestInspect() {
	out, err := s.run("inspect", s.sweep)
	s.Require().NoError(err)
	s.Contains(out, "3 columns, 3 rows")
	s.Contains(out, "temperature = 4.2")

	out, err = s.run("inspect", "--json", s.sweep)
	s.Require().NoError(err)

	var doc struct {
		Path    string                 `json:"path"`
		Rows    int                    `json:"rows"`
		Headers map[string]interface{} `json:"headers"`
		Columns []columnInfo           `json:"columns"`
	}
	s.Require().NoError(jsonpool.Unmarshal([]byte(out), &doc))
	s.Equal(s.sweep, doc.Path)
	s.Equal(3, doc.Rows)
	s.Equal(4.2, doc.Headers["temperature"])
	s.Equal([]interface{}{1.0, 2.5, 10.0}, doc.Headers["gains"])
	s.Require().Len(doc.Columns, 3)
	s.Equal(columnInfo{Key: "f", DType: "float64", Length: 3}, doc.Columns[0])

	out, err = s.run("inspect", "--header-only", s.sweep)
	s.Require().NoError(err)
	s.Contains(out, "0 columns")
}

func (s *CLISuite) TestInspectForcedWhitespace() {
	aligned := s.CreateFile("aligned.txt", "x  y\n1  2\n3  4\n")
	for _, name := range []string{"whitespace", "space"} {
		out, err := s.run("inspect", "--input-delimiter", name, aligned)
		s.Require().NoError(err, name)
		s.Contains(out, "2 columns, 2 rows", name)
	}
}

func (s *CLISuite) TestInspectMissingFile() {
	_, err := s.run("inspect", s.Path("missing.txt"))
	s.True(errors.IsType(err, errors.ErrorTypeAborted))
}

func (s *CLISuite) TestEval() {
	out, err := s.run("eval", s.sweep, "c('x') + c('y')")
	s.Require().NoError(err)
	s.Equal("[0, 0, 0]\n", out)

	out, err = s.run("eval", "--global", "scale=2", s.sweep, "c('f') * scale", "h('temp')")
	s.Require().NoError(err)
	s.Equal("c('f') * scale = [2, 4, 6]\nh('temp') = 4.2\n", out)

	out, err = s.run("eval", s.sweep, "x + 1", "nope(")
	s.Require().Error(err)
	s.Contains(err.Error(), "2 errors occurred")
	s.Contains(out, "x + 1 = <undefined>")

	_, err = s.run("eval", "--global", "scale", s.sweep, "1")
	s.True(errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.run("eval", "--max-depth", "1", s.sweep, "a where a=b where b=1")
	s.True(strings.Contains(err.Error(), "recursion"), err.Error())
}

func (s *CLISuite) TestConvertAndCompare() {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{"ascii.txt.gz", nil},
		{"binary.txt.zst", []string{"--binary", "float64"}},
	} {
		s.Run(tc.name, func() {
			target := s.Path(tc.name)
			args := append([]string{"convert", s.sweep, target, "--force"}, tc.args...)
			out, err := s.run(args...)
			s.Require().NoError(err)
			s.Equal(target+"\n", out)

			out, err = s.run("compare", s.sweep, target)
			s.Require().NoError(err)
			s.Equal("same\n", out)
		})
	}

	out, err := s.run("compare", s.sweep, s.ragged)
	s.Error(err)
	s.Equal("different\n", out)

	_, err = s.run("compare", "--headers=false", "--columns=false", s.sweep, s.ragged)
	s.NoError(err)
}

func (s *CLISuite) TestConvertKeepsBackup() {
	target := s.Path("backup.txt")
	_, err := s.run("convert", s.sweep, target)
	s.Require().NoError(err)
	_, err = s.run("convert", s.ragged, target)
	s.Require().NoError(err)

	_, err = os.Stat(target + ".backup")
	s.NoError(err)
}

func (s *CLISuite) TestExport() {
	target := s.Path("sweep.arrow")
	out, err := s.run("export", s.sweep, target)
	s.Require().NoError(err)
	s.Equal(target+"\n", out)

	f, err := os.Open(target)
	s.Require().NoError(err)
	defer f.Close()
	r, err := ipc.NewFileReader(f)
	s.Require().NoError(err)
	defer r.Close()
	s.Require().Len(r.Schema().Fields(), 3)
	s.Equal("f", r.Schema().Field(0).Name)

	for _, format := range []string{"parquet", "avro", "json"} {
		_, err := s.run("export", "--format", format, s.ragged, s.Path("ragged.out"))
		s.NoError(err, format)
	}

	_, err = s.run("export", s.sweep, s.Path("sweep.xyz"))
	s.True(errors.IsType(err, errors.ErrorTypeValidation))
	_, err = s.run("export", "--format", "orc", s.sweep, s.Path("sweep.orc"))
	s.True(errors.IsType(err, errors.ErrorTypeCapability))
}

func (s *CLISuite) TestConfigLayers() {
	cfgPath := s.CreateFile("databox.yaml", "save:\n  binary: float32\n")
	target := s.Path("configured.txt")
	_, err := s.run("--config", cfgPath, "convert", "--force", s.sweep, target)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(testutil.ReadFile(s.T(), target), "SPINMOB_BINARY"))

	s.T().Setenv("DATABOX_SAVE_PAD_TOKEN", "?")
	_, err = s.run("convert", s.sweep, s.Path("env.txt"))
	s.True(errors.IsType(err, errors.ErrorTypeConfig))

	_, err = s.run("--config", s.Path("absent.yaml"), "version")
	s.NoError(err, "version does not read configuration")
}

func (s *CLISuite) TestMetricsFile() {
	metricsPath := s.Path("metrics.prom")
	_, err := s.run("--metrics-file", metricsPath, "inspect", s.sweep)
	s.Require().NoError(err)
	s.Contains(testutil.ReadFile(s.T(), metricsPath), "databox_files_loaded_total")
}

func (s *CLISuite) TestProfiles() {
	cpu, mem := s.Path("cpu.pprof"), s.Path("mem.pprof")
	_, err := s.run("--cpu-profile", cpu, "--mem-profile", mem, "inspect", s.sweep)
	s.Require().NoError(err)
	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		s.Require().NoError(err)
		s.Positive(info.Size(), path)
	}
}

func TestParseGlobals(t *testing.T) {
	globals, err := parseGlobals([]string{"a=1", " b = -2.5 "})
	require.NoError(t, err)
	v, _ := globals["b"].Float()
	require.Equal(t, -2.5, v)

	_, err = parseGlobals([]string{"=1"})
	require.Error(t, err)
	_, err = parseGlobals([]string{"a=x"})
	require.Error(t, err)
}

func TestDelimiterFlag(t *testing.T) {
	require.Equal(t, "\t", delimiterFlag("tab"))
	require.Equal(t, " ", delimiterFlag("space"))
	require.Equal(t, databox.Whitespace, delimiterFlag("whitespace"))
	require.Equal(t, "|", delimiterFlag("|"))

	require.Equal(t, databox.Whitespace, inputDelimiter("space"))
	require.Equal(t, databox.Whitespace, inputDelimiter(" "))
	require.Equal(t, "\t", inputDelimiter("tab"))
}
