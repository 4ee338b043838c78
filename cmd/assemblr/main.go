// Command assemblr supervises genome assembly, read subsampling and
// contig compression tools.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/deixis/assemblr"
	"github.com/deixis/assemblr/internal/config"
	"github.com/deixis/assemblr/internal/diag"
	"github.com/deixis/assemblr/internal/log"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
	"github.com/deixis/assemblr/internal/workflow"
	"github.com/spf13/cobra"
)

// errUsage marks command-line mistakes; they exit with status 2.
var errUsage = errors.New("usage")

// exitError carries the exit status of a supervised tool that failed. The
// failure has already been reported, so it is not logged again.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	var exit exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.code
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return 2
	default:
		slog.ErrorContext(ctx, "assemblr failed", "error", err)
		return 1
	}
}

// app holds state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flagConfig  string // value of --config
	flagVerbose bool   // value of --verbose
	flagJSON    bool   // value of --json

	cfg        *config.Config
	configPath string // empty when running on defaults
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assemblr",
		Short: "Supervise genome assembly, read subsampling and contig compression",
		Long: `assemblr runs an external metagenome assembler, read subsampler and
contig compressor. A failed assembly is resumed once from its last
checkpoint; if that also fails, the assembler's options and log are
reported and the output directory is removed.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: a.setup,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&a.flagConfig, "config", "", "config file to load (default "+config.FileName+" in the current directory)")
	root.PersistentFlags().BoolVar(&a.flagVerbose, "verbose", false, "verbose logging")
	root.PersistentFlags().BoolVar(&a.flagJSON, "json", false, "print run records as JSON")

	root.AddCommand(
		a.newAssembleCmd(),
		a.newSubsampleCmd(),
		a.newCleanupCmd(),
		a.newInspectCmd(),
		a.newMCPCmd(),
		a.newVersionCmd(),
	)
	return root
}

// setup loads the configuration and installs the default logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(dir, a.flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = loaded.Config
	a.configPath = loaded.Path

	level, err := log.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// --verbose has precedence over the config file
	if a.flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(a.stderr, level, a.cfg.LogFormat()))

	slog.Debug("assemblr run", "command", cmd.Name(), "config_path", a.configPath)
	return nil
}

// engine builds a workflow engine running tools in the working directory.
func (a *app) engine(timeout time.Duration) *workflow.Engine {
	if timeout <= 0 {
		timeout = a.cfg.Timeout()
	}
	return &workflow.Engine{
		Runner: &runner.Runner{
			Timeout:   timeout,
			MaxOutput: a.cfg.MaxOutputBytes(),
		},
		Diagnostics: diag.NewFileLogger(diag.SlogSink{}),
	}
}

func (a *app) store() *report.DiskStore {
	return report.NewDiskStore(a.cfg.RunsDir())
}

// save persists rr for the inspect command. A failed save only loses
// drill-down, so it is logged rather than returned.
func (a *app) save(ctx context.Context, rr *report.RunResult) {
	if err := a.store().Save(rr); err != nil {
		slog.WarnContext(ctx, "saving run", "run_id", rr.ID, "error", err)
	}
}

// runOutput is the --json document of a supervised run.
type runOutput struct {
	Run     *report.RunResult `json:"run"`
	Outputs any               `json:"outputs"`
}

// emit prints a finished run and converts tool failure into exit status 1.
func (a *app) emit(rr *report.RunResult, outputs any, ok bool, text func(w io.Writer)) error {
	if a.flagJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runOutput{Run: rr, Outputs: outputs}); err != nil {
			return err
		}
	} else {
		text(a.stdout)
	}
	if !ok {
		return exitError{code: 1}
	}
	return nil
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "assemblr: %s\n", assemblr.Version)
			if a.configPath != "" {
				fmt.Fprintf(a.stdout, "config:   %s\n", a.configPath)
			}
			info, ok := debug.ReadBuildInfo()
			if !ok {
				return
			}
			fmt.Fprintf(a.stdout, "go:       %s\n", info.GoVersion)
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					fmt.Fprintf(a.stdout, "commit:   %s\n", s.Value)
				case "vcs.time":
					fmt.Fprintf(a.stdout, "date:     %s\n", s.Value)
				}
			}
		},
	}
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

// requireFlags reports the first of names that was not set or was set to
// an empty value.
func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("%w: --%s is required", errUsage, name)
		}
		if cmd.Flags().Lookup(name).Value.String() == "" {
			return fmt.Errorf("%w: --%s must not be empty", errUsage, name)
		}
	}
	return nil
}
