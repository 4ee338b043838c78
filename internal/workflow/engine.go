// Package workflow supervises the external assembly, subsampling and
// compression tools. It is consumed by both the MCP server and the CLI
// commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deixis/assemblr/internal/diag"
	"github.com/deixis/assemblr/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// DiagnosticLogger emits the contents of existing diagnostic files and
// reports which ones it logged. Implemented by diag.FileLogger.
type DiagnosticLogger interface {
	LogFiles(ctx context.Context, paths ...string) []string
}

// Engine holds shared dependencies for all workflow operations. It keeps
// no state between calls; concurrent calls are safe as long as they use
// distinct output directories.
type Engine struct {
	Runner      CommandRunner
	Diagnostics DiagnosticLogger // nil logs through slog.Default at error level
	Workspace   string           // relative paths are resolved here for file-system operations
}

func (e *Engine) diagnostics() DiagnosticLogger {
	if e.Diagnostics != nil {
		return e.Diagnostics
	}
	return diag.NewFileLogger(diag.SlogSink{})
}

// resolve returns the path used for file-system operations. Reported
// output paths are never resolved; they stay exactly as the caller gave them.
func (e *Engine) resolve(path string) string {
	if e.Workspace == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.Workspace, path)
}

// run executes argv once. Errors mean the tool could not be started at all.
func (e *Engine) run(ctx context.Context, argv []string) (*runner.Result, error) {
	res, err := e.Runner.Run(ctx, argv, "")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, NewErrToolUnavailable(argv[0], err)
		}
		return nil, err
	}
	return res, nil
}

// toolInfo holds install metadata for a known tool.
type toolInfo struct {
	Conda string // bioconda package name
	URL   string // project page
}

// knownTools maps tool binary names to their install metadata.
var knownTools = map[string]toolInfo{
	"megahit":     {Conda: "megahit", URL: "https://github.com/voutcn/megahit"},
	"sample_seqs": {URL: "https://github.com/mooreryan/sample_seqs"},
	"pigz":        {Conda: "pigz", URL: "https://zlib.net/pigz/"},
	"gzip":        {URL: "https://www.gnu.org/software/gzip/"},
}

// ErrToolUnavailable is returned when a required tool is not installed.
// It includes actionable install instructions when the tool is known.
type ErrToolUnavailable struct {
	Name string
	Info *toolInfo
	Err  error
}

func NewErrToolUnavailable(name string, err error) ErrToolUnavailable {
	e := ErrToolUnavailable{Name: name, Err: err}
	if info, ok := knownTools[filepath.Base(name)]; ok {
		e.Info = &info
	}
	return e
}

func (e ErrToolUnavailable) Unwrap() error {
	return e.Err
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.", e.Name)

	if e.Info == nil {
		return b.String()
	}

	fmt.Fprintln(&b)
	if e.Info.Conda != "" {
		fmt.Fprintf(&b, "\nInstall:\n  conda install -c bioconda %s", e.Info.Conda)
	}
	if e.Info.URL != "" {
		fmt.Fprintf(&b, "\nSee: %s", e.Info.URL)
	}
	return b.String()
}
