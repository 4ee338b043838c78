package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/deixis/assemblr/internal/log"
	"github.com/deixis/assemblr/internal/report"
)

const (
	// FlagContinue asks the assembler to resume from its last checkpoint.
	FlagContinue = "--continue"

	// DefaultOutPrefix is the file prefix the assembler uses when none is given.
	DefaultOutPrefix = "final"

	// OptionsFile is the assembler's record of its effective options.
	OptionsFile = "opts.txt"
)

// AssemblyInvocation describes one assembly. Binary and OutDir are
// required in practice; the assembler reports anything else it rejects.
type AssemblyInvocation struct {
	Binary    string
	Threads   int
	OutDir    string
	Reads     ReadInputs
	OutPrefix string // empty leaves the assembler default
	Preset    Preset
}

// prefix is the effective output prefix used to name result files.
func (inv AssemblyInvocation) prefix() string {
	if inv.OutPrefix == "" {
		return DefaultOutPrefix
	}
	return inv.OutPrefix
}

// argv builds the first-attempt command line.
func (inv AssemblyInvocation) argv() []string {
	threads := max(inv.Threads, 1)
	argv := []string{
		inv.Binary,
		"--num-cpu-threads", strconv.Itoa(threads),
		"--out-dir", inv.OutDir,
		"-1", inv.Reads.Forward,
		"-2", inv.Reads.Reverse,
		"-r", inv.Reads.Single,
	}
	if inv.OutPrefix != "" {
		argv = append(argv, "--out-prefix", inv.OutPrefix)
	}
	return append(argv, inv.Preset.Flags()...)
}

// Outputs returns the expected artifacts, independent of any run.
func (inv AssemblyInvocation) Outputs() AssemblyOutputs {
	return AssemblyOutputs{
		FinalContigs: filepath.Join(inv.OutDir, inv.prefix()+".contigs.fa"),
	}
}

// diagnosticFiles lists the files logged after a terminal failure, in order.
func (inv AssemblyInvocation) diagnosticFiles() []string {
	return []string{
		filepath.Join(inv.OutDir, OptionsFile),
		filepath.Join(inv.OutDir, inv.prefix()+".log"),
	}
}

// attemptState is the position of an assembly in its retry sequence.
type attemptState int

const (
	stateFirstAttempt attemptState = iota
	stateRetry
	stateSuccess
	stateTerminalFailure
)

func (s attemptState) String() string {
	switch s {
	case stateFirstAttempt:
		return "first_attempt"
	case stateRetry:
		return "retry"
	case stateSuccess:
		return "success"
	case stateTerminalFailure:
		return "terminal_failure"
	}
	return "unknown"
}

// next returns the state following an attempt that succeeded or not.
// A failed retry is terminal, so an assembly never runs more than twice.
func (s attemptState) next(ok bool) attemptState {
	switch s {
	case stateFirstAttempt:
		if ok {
			return stateSuccess
		}
		return stateRetry
	case stateRetry:
		if ok {
			return stateSuccess
		}
		return stateTerminalFailure
	}
	return s
}

func (s attemptState) terminal() bool {
	return s == stateSuccess || s == stateTerminalFailure
}

// Assemble runs the assembler, retrying once with FlagContinue if the
// first attempt fails. After a failed retry the diagnostic files are
// logged and the output directory is removed. The returned error is
// non-nil only when the assembler could not be started or the output
// directory could not be removed; tool failure is reported in the result.
func (e *Engine) Assemble(ctx context.Context, inv AssemblyInvocation) (*AssemblyResult, error) {
	rr := newRun(report.Assemble)
	ctx = log.ContextAttrs(ctx, slog.String("run_id", rr.ID), slog.String("kind", string(rr.Kind)))

	if inv.Preset != "" && !inv.Preset.Known() {
		slog.DebugContext(ctx, "unknown preset: using assembler defaults", "preset", inv.Preset)
	}

	base := inv.argv()
	state := stateFirstAttempt
	res := &AssemblyResult{Run: rr, Outputs: inv.Outputs()}

	for !state.terminal() {
		argv := base
		if state == stateRetry {
			argv = append(slices.Clip(base), FlagContinue)
		}

		out, err := e.run(ctx, argv)
		if err != nil {
			return nil, fmt.Errorf("running assembler: %w", err)
		}
		recordAttempt(rr, out)
		res.Status = out.Status
		res.ExitCode = out.ExitCode

		next := state.next(out.Status.Success())
		slog.InfoContext(ctx, "assembly attempt finished",
			"attempt", state.String(),
			"status", out.Status.String(),
			"next", next.String(),
		)
		state = next
	}

	if state == stateTerminalFailure {
		slog.ErrorContext(ctx, "assembly failed after checkpoint retry", "out_dir", inv.OutDir)
		rr.Diagnostics = e.diagnostics().LogFiles(ctx, e.resolveAll(inv.diagnosticFiles())...)

		removed, err := e.removeOutDir(inv.OutDir)
		if err != nil {
			return nil, fmt.Errorf("removing output directory %s: %w", inv.OutDir, err)
		}
		rr.OutDirRemoved = removed
	}

	rr.Artifacts = []report.Artifact{artifact(report.ArtifactFinalContigs, res.Outputs.FinalContigs)}
	return res, nil
}

func (e *Engine) resolveAll(paths []string) []string {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = e.resolve(p)
	}
	return resolved
}

// removeOutDir deletes the output directory tree if it exists. An empty
// dir is never resolved against the workspace, so it removes nothing.
func (e *Engine) removeOutDir(dir string) (bool, error) {
	if dir == "" {
		return false, nil
	}
	path := e.resolve(dir)
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(path); err != nil {
		return false, err
	}
	return true, nil
}
