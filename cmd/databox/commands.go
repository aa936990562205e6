package main

import (
	"fmt"
	"math/cmplx"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/formats/columnar"
	jsonpool "github.com/labkit/databox/pkg/json"
	"github.com/labkit/databox/pkg/script"
)

// loadFlags are the parse overrides shared by commands that read files.
type loadFlags struct {
	firstLine  int
	delimiter  string
	headerOnly bool
}

func (lf *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&lf.firstLine, "first-line", -1, "Index of the first data line; -1 detects it")
	cmd.Flags().StringVar(&lf.delimiter, "input-delimiter", "", `Force the input delimiter ("tab", "whitespace", or a character)`)
}

func (lf *loadFlags) options() databox.LoadOptions {
	opts := databox.LoadOptions{HeaderOnly: lf.headerOnly}
	if lf.firstLine >= 0 {
		opts.FirstDataLine = databox.Line(lf.firstLine)
	}
	if lf.delimiter != "" {
		opts.Delimiter = databox.Delim(inputDelimiter(lf.delimiter))
	}
	return opts
}

// delimiterFlag accepts names for characters that are awkward on a shell.
// "whitespace" means runs of blanks.
func delimiterFlag(s string) string {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return "\t"
	case "whitespace":
		return databox.Whitespace
	case "space":
		return " "
	case "comma":
		return ","
	case "semicolon":
		return ";"
	}
	return s
}

// inputDelimiter is delimiterFlag for reading. Space separated columns are
// aligned with runs of spaces, so a space reads as whitespace.
func inputDelimiter(s string) string {
	if d := delimiterFlag(s); d != " " {
		return d
	}
	return databox.Whitespace
}

func newInspectCmd(c *cli) *cobra.Command {
	var (
		lf     loadFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the headers, columns and parse report of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.load(cmd.Context(), args[0], lf.options())
			if err != nil {
				return err
			}
			if !asJSON {
				_, err := fmt.Fprint(cmd.OutOrStdout(), d.Summary())
				return err
			}
			doc, err := inspectJSON(d)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(doc, '\n'))
			return err
		},
	}
	lf.register(cmd)
	cmd.Flags().BoolVar(&lf.headerOnly, "header-only", false, "Read the headers only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON document instead of text")
	return cmd
}

type columnInfo struct {
	Key    string `json:"key"`
	DType  string `json:"dtype"`
	Length int    `json:"length"`
	NaNs   int    `json:"nans"`
}

func inspectJSON(d *databox.Databox) ([]byte, error) {
	report := d.LastReport()

	headers := jsonpool.NewObjectWriter()
	for _, key := range d.Hkeys() {
		v, err := d.H(key)
		if err != nil {
			_, _ = headers.Bytes()
			return nil, err
		}
		headers.WriteField(key, columnar.HeaderJSON(v))
	}
	headersJSON, err := headers.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode headers")
	}

	columns := make([]columnInfo, 0, d.Len())
	for _, key := range d.Ckeys() {
		col, err := d.C(key)
		if err != nil {
			return nil, err
		}
		info := columnInfo{Key: key, DType: col.DType().String(), Length: col.Len()}
		if col.DType() != databox.Str {
			for _, z := range col.Complexes() {
				if cmplx.IsNaN(z) {
					info.NaNs++
				}
			}
		}
		columns = append(columns, info)
	}

	doc := jsonpool.NewObjectWriter()
	doc.WriteField("path", report.Path)
	doc.WriteField("delimiter", report.Delimiter)
	doc.WriteField("binary", report.Binary)
	doc.WriteField("compression", string(report.Compression))
	doc.WriteField("first_data_line", report.FirstDataLine)
	doc.WriteField("rows", d.Rows())
	doc.WriteRawField("headers", headersJSON)
	doc.WriteField("columns", columns)
	doc.WriteField("no_data", report.NoData)
	doc.WriteField("synthetic_keys", report.SyntheticKeys)
	doc.WriteField("duplicate_keys", report.DuplicateKeys)
	out, err := doc.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode report")
	}
	return out, nil
}

func newEvalCmd(c *cli) *cobra.Command {
	var (
		lf       loadFlags
		globals  []string
		maxDepth int
	)
	cmd := &cobra.Command{
		Use:   "eval FILE SCRIPT...",
		Short: "Evaluate scripts against the columns and headers of a file",
		Long: `Evaluate one or more scripts. Columns are reachable as c('name') or c(index),
headers as h('name'), and "expr where a=...; b=..." binds helper names.

Example:
  databox eval sweep.txt "c('x')**2 + c('y')**2" "mean(a) where a=c(1)"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseGlobals(globals)
			if err != nil {
				return err
			}
			d, err := c.load(cmd.Context(), args[0], lf.options())
			if err != nil {
				return err
			}

			opts := []script.Option{script.WithGlobals(extra)}
			if maxDepth > 0 {
				opts = append(opts, script.WithMaxDepth(maxDepth))
			}

			var result *multierror.Error
			out := cmd.OutOrStdout()
			for _, s := range args[1:] {
				v, err := d.ExecuteScript(s, opts...)
				if err != nil {
					c.log.Warn("script failed", zap.String("script", s), zap.Error(err))
					result = multierror.Append(result, err)
				}
				if len(args) == 2 {
					fmt.Fprintln(out, v.String())
				} else {
					fmt.Fprintf(out, "%s = %s\n", s, v.String())
				}
			}
			return result.ErrorOrNil()
		},
	}
	lf.register(cmd)
	cmd.Flags().StringArrayVar(&globals, "global", nil, "Extra numeric name visible to scripts, as name=value (repeatable)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Override the where-binding depth cap")
	return cmd
}

func parseGlobals(pairs []string) (map[string]script.Value, error) {
	globals := make(map[string]script.Value, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "--global %q is not name=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "--global "+name)
		}
		globals[name] = script.Number(f)
	}
	return globals, nil
}

func newConvertCmd(c *cli) *cobra.Command {
	var (
		lf        loadFlags
		binary    string
		force     bool
		delimiter string
		pad       string
	)
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Rewrite a file as ASCII rows or binary column blocks",
		Long: `Rewrite a databox file. --binary float16|float32|float64 writes binary
column blocks; the default writes ASCII rows. A compression suffix on OUT
(.gz, .zst, .lz4, .sz, .s2) compresses the result.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.load(cmd.Context(), args[0], lf.options())
			if err != nil {
				return err
			}
			opts := databox.SaveOptions{Binary: binary, ForceOverwrite: force, PadToken: pad}
			if delimiter != "" {
				opts.Delimiter = databox.Delim(delimiterFlag(delimiter))
			}
			written, err := d.SaveFileContext(cmd.Context(), args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), written)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&binary, "binary", "", "Binary dtype: float16, float32 or float64")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite OUT instead of keeping a .backup copy")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "Output delimiter")
	cmd.Flags().StringVar(&pad, "pad", "", `Token for missing values in ASCII rows ("nan" or "_")`)
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		lf     loadFlags
		format string
		config columnar.WriterConfig
	)
	cmd := &cobra.Command{
		Use:   "export IN OUT",
		Short: "Export a file to Arrow, Parquet, Avro or JSON",
		Long: `Export the headers and columns of a databox file. Without --format the
format follows the extension of OUT (.arrow, .parquet, .avro, .json).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			in, out := args[0], args[1]
			if format != "" {
				if config.Format, err = columnar.ParseFormat(format); err != nil {
					return err
				}
			} else {
				f, ok := columnar.FormatForPath(out)
				if !ok {
					return errors.Newf(errors.ErrorTypeValidation, "cannot tell the export format of %s; use --format", out)
				}
				config.Format = f
			}

			d, err := c.load(cmd.Context(), in, lf.options())
			if err != nil {
				return err
			}

			f, err := os.Create(out) //nolint:gosec // G304: path comes from the command line
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to create "+out)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close "+out)
				}
			}()

			if err := columnar.Export(cmd.Context(), f, d, &config); err != nil {
				return err
			}
			c.log.Info("exported",
				zap.String("path", out),
				zap.String("format", string(config.Format)),
				zap.Int("rows", d.Rows()))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "", "Export format: arrow, parquet, avro or json")
	cmd.Flags().StringVar(&config.Compression, "compression", "", "Codec for the chosen format")
	cmd.Flags().IntVar(&config.BatchSize, "batch-size", 0, "Rows per Arrow record batch or Parquet row group; 0 writes one")
	cmd.Flags().BoolVar(&config.Pretty, "pretty", false, "Indent JSON output")
	return cmd
}

func newCompareCmd(c *cli) *cobra.Command {
	var opts databox.CompareOptions
	cmd := &cobra.Command{
		Use:   "compare A B",
		Short: "Report whether two files hold the same databox",
		Long: `Compare two files. Every aspect is compared by default; turn one off with
e.g. --header-order=false. The command fails when the files differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.load(cmd.Context(), args[0], databox.LoadOptions{})
			if err != nil {
				return err
			}
			b, err := c.load(cmd.Context(), args[1], databox.LoadOptions{})
			if err != nil {
				return err
			}
			if !a.IsSameAs(b, opts) {
				fmt.Fprintln(cmd.OutOrStdout(), "different")
				return errors.Newf(errors.ErrorTypeData, "%s and %s differ", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "same")
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Headers, "headers", true, "Compare header values")
	cmd.Flags().BoolVar(&opts.Columns, "columns", true, "Compare column values")
	cmd.Flags().BoolVar(&opts.HeaderOrder, "header-order", true, "Require headers in the same order")
	cmd.Flags().BoolVar(&opts.ColumnOrder, "column-order", true, "Require columns in the same order")
	cmd.Flags().BoolVar(&opts.Keys, "keys", true, "Match by key rather than position")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// the root hooks would load configuration for nothing
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "databox v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Export formats: %s\n", formatList())
		},
	}
}

func formatList() string {
	names := make([]string, 0, len(columnar.Formats()))
	for _, f := range columnar.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

