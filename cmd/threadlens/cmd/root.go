package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/threadlens/internal/config"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
	"github.com/hugo-lorenzo-mato/threadlens/internal/logging"
)

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	noColor     bool
	inputFormat string
	maxBytes    int64

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string

	// Loaded by initConfig for every command that needs configuration.
	cfg    *config.Config
	logger *logging.Logger

	// preRunReached is false while cobra is still parsing arguments and
	// flags, so errors raised before it flips are usage errors.
	preRunReached bool
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "threadlens",
	Short: "Deadlock and contention diagnostics for thread dumps",
	Long: `threadlens reads point-in-time thread dumps, reconstructs which threads
hold and wait on which locks, finds circular waits and ranks lock contention.

Results are rendered as Mermaid, Graphviz DOT or JSON diagrams, markdown or
HTML reports, or machine-readable JSON for automated triage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		preRunReached = true
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return initConfig(cmd)
	},
}

// Execute runs the root command. Errors cobra raises while parsing
// arguments are reported as input errors.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	preRunReached = false
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !preRunReached && core.GetCode(err) == "" {
		return core.ErrInput(core.CodeInvalidArgs, err.Error())
	}
	return err
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .threadlens.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().StringVar(&inputFormat, "input-format", "auto",
		"dump encoding (auto, json, yaml)")
	rootCmd.PersistentFlags().Int64Var(&maxBytes, "max-bytes", config.DefaultMaxBytes,
		"maximum size of one dump in bytes (0 disables the limit)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return core.ErrInput(core.CodeInvalidArgs, err.Error())
	})
}

// flagBindings maps configuration keys to the flags that override them.
// Only flags present on the running command are bound.
var flagBindings = map[string]string{
	"log.level":          "log-level",
	"log.format":         "log-format",
	"input.format":       "input-format",
	"input.max_bytes":    "max-bytes",
	"render.direction":   "direction",
	"render.hide_idle":   "hide-idle",
	"report.format":      "report-format",
	"report.top_n":       "top-n",
	"report.stack_depth": "stack-depth",
	"batch.concurrency":  "concurrency",
}

func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	for key, name := range flagBindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}

	loader := config.NewLoaderWithViper(v)
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	loaded, err := loader.Load()
	if err != nil {
		return core.ErrInput(core.CodeInvalidConfig, "loading configuration").WithCause(err)
	}
	if err := config.ValidateConfig(loaded); err != nil {
		return core.ErrInput(core.CodeInvalidConfig, "invalid configuration").WithCause(err)
	}

	cfg = loaded
	logger = logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cmd.ErrOrStderr(),
		NoColor: noColor,
	}).WithCommand(cmd.Name())

	if used := loader.ConfigFile(); used != "" {
		logger.Debug("configuration loaded", "file", used)
	}
	return nil
}
