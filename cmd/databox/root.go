package main

import (
	"bytes"
	"context"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/labkit/databox/pkg/config"
	"github.com/labkit/databox/pkg/databox"
	"github.com/labkit/databox/pkg/errors"
	"github.com/labkit/databox/pkg/logger"
	"github.com/labkit/databox/pkg/metrics"
	"github.com/labkit/databox/pkg/observability"
)

// envPrefix namespaces environment overrides, e.g. DATABOX_SAVE_BINARY.
const envPrefix = "DATABOX"

// cli holds what every subcommand needs once the persistent flags have been
// resolved.
type cli struct {
	configPath  string
	logLevel    string
	trace       bool
	metricsFile string
	cpuProfile  string
	memProfile  string

	cfg        *config.Config
	log        *zap.Logger
	cpuProfOut *os.File
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "databox",
		Short: "Inspect, script and convert lab data files",
		Long: `databox reads the text files lab instruments write: a block of header
lines followed by columns of numbers. It finds where the data starts,
evaluates scripts over the columns, rewrites files as ASCII or binary,
and exports them to Arrow, Parquet, Avro or JSON.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to a YAML configuration file")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&c.trace, "trace", false, "Print OpenTelemetry spans to stderr")
	flags.StringVar(&c.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.StringVar(&c.cpuProfile, "cpu-profile", "", "Write a pprof CPU profile to this file")
	flags.StringVar(&c.memProfile, "mem-profile", "", "Write a pprof heap profile to this file on exit")

	root.AddCommand(
		newInspectCmd(c),
		newEvalCmd(c),
		newConvertCmd(c),
		newExportCmd(c),
		newCompareCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup layers the configuration: defaults, the YAML file, DATABOX_*
// environment variables, then flags.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(c.configPath, cmd)
	if err != nil {
		return err
	}
	if c.trace {
		cfg.Observability.EnableTracing = true
	}
	c.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	ctx := context.WithValue(cmd.Context(), logger.CommandKey, cmd.Name())
	c.log = logger.WithContext(ctx).Named("cli")

	metrics.SetEnabled(cfg.Observability.EnableMetrics || c.metricsFile != "")

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultConfig()
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		tc.Writer = cmd.ErrOrStderr()
		if err := observability.Initialize(tc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
	}

	if c.cpuProfile != "" {
		f, err := os.Create(c.cpuProfile)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create CPU profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to start CPU profile")
		}
		c.cpuProfOut = f
	}
	return nil
}

func (c *cli) teardown() error {
	if c.cpuProfOut != nil {
		pprof.StopCPUProfile()
		if err := c.cpuProfOut.Close(); err != nil {
			c.log.Warn("failed to close CPU profile", zap.Error(err))
		}
		c.cpuProfOut = nil
	}
	if c.memProfile != "" {
		if err := writeHeapProfile(c.memProfile); err != nil {
			return err
		}
	}
	if c.cfg != nil && c.cfg.Observability.EnableTracing {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			c.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if c.metricsFile != "" {
		if err := prometheus.WriteToTextfile(c.metricsFile, prometheus.DefaultGatherer); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write metrics")
		}
	}
	_ = logger.Sync()
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create heap profile")
	}
	defer f.Close()

	// up-to-date allocation statistics
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write heap profile")
	}
	return nil
}

// loadConfig reads path (when set) over the defaults, then lets viper apply
// environment variables and bound flags on top.
func loadConfig(path string, cmd *cobra.Command) (*config.Config, error) {
	base := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load configuration")
		}
		base = loaded
	}

	data, err := yaml.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode configuration")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read configuration")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("logging.level", f); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind --log-level")
		}
	}

	cfg := config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	// viper folds map keys to lower case; column names and globals are
	// case sensitive
	cfg.Legacy.ColumnRenames = base.Legacy.ColumnRenames
	cfg.Script.Globals = base.Script.Globals
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration")
	}
	return cfg, nil
}

// newBox returns an empty databox wired to the resolved configuration.
func (c *cli) newBox() *databox.Databox {
	return databox.New(databox.WithConfig(c.cfg), databox.WithLogger(c.log))
}

// load reads path into a fresh databox.
func (c *cli) load(ctx context.Context, path string, opts databox.LoadOptions) (*databox.Databox, error) {
	c.log.Debug("loading", zap.String("path", path))
	return c.newBox().LoadFileContext(ctx, path, opts)
}
