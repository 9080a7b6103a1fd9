package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"pkgtrace/internal/config"
	"pkgtrace/internal/trace"
	"pkgtrace/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "pkgtrace",
	Short: "Packaging data for Go error traces",
	Long: `pkgtrace annotates every frame of an error or goroutine traceback with
the module and version that supplied its code.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupApp,
}

// app is the per-invocation state built by setupApp.
var app struct {
	cfg       config.Config
	color     bool
	log       logr.Logger
	heartbeat time.Duration
	cleanups  []func()
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)

	registerGlobalFlags(rootCmd.PersistentFlags())

	err := rootCmd.Execute()
	closeApp()
	if err != nil {
		os.Exit(1)
	}
}

func registerGlobalFlags(pf *pflag.FlagSet) {
	pf.String("config", "", "path to "+config.FileName+" (default: search upward from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("trace", "", "trace output file (\"-\" for stderr)")
	pf.String("trace-level", "", "trace level (off|error|info|detail|debug)")
	pf.String("trace-mode", "", "trace storage mode (stream|ring|both|log)")
	pf.String("trace-format", "", "trace format (auto|text|ndjson)")
	pf.Int("trace-ring-size", 0, "ring buffer capacity")
	pf.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
}

// setupApp loads the configuration and builds the logger and tracer shared by
// every subcommand.
func setupApp(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()

	path, _ := flags.GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	app.cfg = cfg

	colorFlag, _ := flags.GetString("color")
	on, err := resolveColor(colorFlag, os.Stdout)
	if err != nil {
		return err
	}
	app.color = on
	color.NoColor = !on

	logLevel, _ := flags.GetString("log-level")
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log, sync, err := trace.NewZapLogger(trace.LoggerConfig{
		Level:       logLevel,
		Development: cfg.Log.Development,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	app.log = log.WithName("pkgtrace")
	app.cleanups = append(app.cleanups, sync)
	if cfg.Path != "" {
		app.log.V(1).Info("configuration loaded", "path", cfg.Path)
	}

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	app.cleanups = append(app.cleanups, cleanup)
	return nil
}

// closeApp runs cleanups in reverse order of registration.
func closeApp() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
	app.cleanups = nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

func resolveColor(mode string, out *os.File) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	case "", "auto":
		return os.Getenv("NO_COLOR") == "" && isTerminal(out), nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
