package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/deixis/assemblr/internal/log"
	"github.com/deixis/assemblr/internal/report"
)

const (
	// IntermediateDir is the assembler's scratch subdirectory.
	IntermediateDir = "intermediate_contigs"

	// ContigsPattern matches the contig files compressed by CleanUp.
	ContigsPattern = "*.contigs.fa"
)

// ErrNoAssemblyDir is returned by CleanUp when no assembly directory is given.
var ErrNoAssemblyDir = errors.New("cleanup: assembly directory is required")

// CleanupInvocation describes the compression of a finished assembly
// directory.
type CleanupInvocation struct {
	AssemblyDir string
	Compressor  string // pigz gets a thread count; any other tool gets none
	Threads     int
}

func (inv CleanupInvocation) parallel() bool {
	return filepath.Base(inv.Compressor) == "pigz"
}

// CleanUp removes the intermediate contigs directory and compresses the
// remaining contig files. The compressor's status is returned without
// interpretation. When no file matches ContigsPattern the literal pattern
// is passed, and the compressor reports the error. An empty AssemblyDir is
// rejected before anything is removed.
func (e *Engine) CleanUp(ctx context.Context, inv CleanupInvocation) (*CleanupResult, error) {
	if inv.AssemblyDir == "" {
		return nil, ErrNoAssemblyDir
	}
	rr := newRun(report.Cleanup)
	ctx = log.ContextAttrs(ctx, slog.String("run_id", rr.ID), slog.String("kind", string(rr.Kind)))

	dir := e.resolve(inv.AssemblyDir)
	if err := os.RemoveAll(filepath.Join(dir, IntermediateDir)); err != nil {
		return nil, fmt.Errorf("removing intermediate contigs: %w", err)
	}

	pattern := filepath.Join(dir, ContigsPattern)
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		files = []string{pattern}
	}

	argv := []string{inv.Compressor}
	if inv.parallel() {
		argv = append(argv, "-p", strconv.Itoa(max(inv.Threads, 1)))
	}
	argv = append(argv, files...)

	out, err := e.run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("running compressor: %w", err)
	}
	recordAttempt(rr, out)
	slog.InfoContext(ctx, "cleanup finished", "files", len(files), "status", out.Status.String())

	return &CleanupResult{
		Run:      rr,
		Status:   out.Status,
		ExitCode: out.ExitCode,
		Outputs:  CleanupOutputs{Compressed: files},
	}, nil
}
