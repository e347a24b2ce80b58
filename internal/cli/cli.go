package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/specialistvlad/cipipe/internal/app"
	"github.com/specialistvlad/cipipe/internal/config"
	"github.com/specialistvlad/cipipe/internal/failure"
	"github.com/specialistvlad/cipipe/internal/module"
	"github.com/specialistvlad/cipipe/internal/pipeline"
)

// Version is reported by --version. It is set at build time.
var Version = "dev"

// ConfigDirsEnv overrides the default configuration directories. It holds a
// list of paths separated by the OS path list separator.
const ConfigDirsEnv = "CIPIPE_CONFIG_DIRS"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type globalFlags struct {
	retries         int
	logLevel        string
	logFormat       string
	configDirs      []string
	healthcheckPort int
	list            bool
	info            bool
	version         bool
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Global options come first; everything from the first module name on is
// split into pipeline steps.
func Parse(args []string, output io.Writer, catalog *module.Catalog) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		flags globalFlags
		cfg   *app.Config
		ran   bool
	)

	cmd := &cobra.Command{
		Use:   "cipipe [global options] MODULE [module options] [MODULE [module options] ...]",
		Short: "cipipe - runs a pipeline of modules that provision, test and report.",
		Long: `cipipe - runs a pipeline of modules that provision, test and report.

Modules run in the order given on the command line. Each module takes its
own options, see "cipipe MODULE --help". Use --list to list the modules.`,
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, rest []string) error {
			ran = true
			switch {
			case flags.version:
				fmt.Fprintf(output, "cipipe version %s\n", Version)
				return nil
			case flags.list:
				printModules(output, catalog)
				return nil
			case len(rest) == 0:
				slog.Debug("No module provided, printing usage and exiting.")
				return cmd.Help()
			}

			var err error
			cfg, err = newConfig(flags, rest, catalog)
			return err
		},
	}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	fs := cmd.Flags()
	fs.SetInterspersed(false)
	fs.IntVarP(&flags.retries, "retries", "r", 0, "Restart the whole pipeline up to N times after a retryable error.")
	fs.StringVar(&flags.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	fs.StringVar(&flags.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	fs.StringArrayVar(&flags.configDirs, "config-dir", defaultConfigDirs(), "Directory with per-module configuration files, later ones win. Repeatable.")
	fs.IntVar(&flags.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	fs.BoolVarP(&flags.list, "list", "l", false, "List available modules and exit.")
	fs.BoolVarP(&flags.info, "info", "i", false, "Log the command line that recreates this run.")
	fs.BoolVarP(&flags.version, "version", "V", false, "Print the version and exit.")

	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if !ran || cfg == nil {
		// Help, version or the module list was printed.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", cfg)
	return cfg, false, nil
}

func newConfig(flags globalFlags, rest []string, catalog *module.Catalog) (*app.Config, error) {
	logFormat := strings.ToLower(flags.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(flags.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	steps, err := pipeline.SplitSteps(rest, catalog.Has)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Pipeline steps determined.", "steps", pipeline.CommandLine(steps))

	cfg, err := app.NewConfig(app.Config{
		Steps:           steps,
		ConfigDirs:      flags.configDirs,
		Retries:         flags.retries,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: flags.healthcheckPort,
		Info:            flags.info,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

func defaultConfigDirs() []string {
	if env := os.Getenv(ConfigDirsEnv); env != "" {
		return filepath.SplitList(env)
	}
	return config.DefaultDirs()
}

func printModules(w io.Writer, catalog *module.Catalog) {
	width := 0
	for _, name := range catalog.Names() {
		width = max(width, len(name))
	}

	fmt.Fprintln(w, "Available modules:")
	for _, group := range catalog.Groups() {
		fmt.Fprintf(w, "\n%s:\n", group.Name)
		for _, d := range group.Modules {
			fmt.Fprintf(w, "  %-*s  %s\n", width, d.Name, d.Description)
		}
	}
}

// ExitFor maps the error returned by a pipeline run to the error main exits
// with. Soft failures exit with code 0 and still print their message.
func ExitFor(err error) error {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var f *failure.Failure
	if errors.As(err, &f) && f.Soft() {
		return &ExitError{Code: 0, Message: f.Error()}
	}
	return &ExitError{Code: 1, Message: err.Error()}
}
