package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/deixis/assemblr/internal/log"
	"github.com/deixis/assemblr/internal/report"
)

// SubsampleInvocation describes one subsampling run.
type SubsampleInvocation struct {
	Binary        string
	Reads         ReadInputs
	Percentage    int
	NumSubsamples int
	OutDir        string
	OutPrefix     string // empty means DefaultSubsamplePrefix(Percentage)

	// RandomSeed is accepted for callers that track it but is not passed
	// to the subsampler.
	RandomSeed *int64
}

// DefaultSubsamplePrefix names subsamples after their percentage,
// zero-padded to two digits.
func DefaultSubsamplePrefix(percentage int) string {
	return fmt.Sprintf("percent_%02d", percentage)
}

func (inv SubsampleInvocation) prefix() string {
	if inv.OutPrefix == "" {
		return DefaultSubsamplePrefix(inv.Percentage)
	}
	return inv.OutPrefix
}

func (inv SubsampleInvocation) argv() []string {
	return []string{
		inv.Binary,
		"-1", inv.Reads.Forward,
		"-2", inv.Reads.Reverse,
		"-s", inv.Reads.Single,
		"-p", strconv.Itoa(inv.Percentage),
		"-n", strconv.Itoa(inv.NumSubsamples),
		"-o", inv.OutDir,
		"-b", inv.prefix(),
	}
}

// Outputs returns the expected artifacts, independent of any run. A
// non-positive NumSubsamples yields no subsamples.
func (inv SubsampleInvocation) Outputs() SubsampleOutputs {
	base := filepath.Join(inv.OutDir, inv.prefix())
	out := SubsampleOutputs{OutDir: inv.OutDir}
	for i := range max(inv.NumSubsamples, 0) {
		stem := base + ".sample_" + strconv.Itoa(i)
		out.Subsamples = append(out.Subsamples, SubsampleFiles{
			Forward: stem + ".1.fq",
			Reverse: stem + ".2.fq",
			Single:  stem + ".U.fq",
		})
	}
	return out
}

// Subsample runs the subsampler exactly once. The returned error is
// non-nil only when the subsampler could not be started.
func (e *Engine) Subsample(ctx context.Context, inv SubsampleInvocation) (*SubsampleResult, error) {
	rr := newRun(report.Subsample)
	ctx = log.ContextAttrs(ctx, slog.String("run_id", rr.ID), slog.String("kind", string(rr.Kind)))

	if inv.RandomSeed != nil {
		slog.DebugContext(ctx, "random seed is not passed to the subsampler", "seed", *inv.RandomSeed)
	}

	out, err := e.run(ctx, inv.argv())
	if err != nil {
		return nil, fmt.Errorf("running subsampler: %w", err)
	}
	recordAttempt(rr, out)

	res := &SubsampleResult{
		Run:      rr,
		Status:   out.Status,
		ExitCode: out.ExitCode,
		Outputs:  inv.Outputs(),
	}
	if out.Status.Success() {
		slog.InfoContext(ctx, "subsampling finished", "subsamples", len(res.Outputs.Subsamples))
	} else {
		slog.ErrorContext(ctx, "subsampling failed", "status", out.Status.String())
	}

	rr.Artifacts = append(rr.Artifacts, artifact(report.ArtifactOutDir, inv.OutDir))
	for i, s := range res.Outputs.Subsamples {
		rr.Artifacts = append(rr.Artifacts,
			sampleArtifact(report.ArtifactSubsampleForward, i, s.Forward),
			sampleArtifact(report.ArtifactSubsampleReverse, i, s.Reverse),
			sampleArtifact(report.ArtifactSubsampleSingle, i, s.Single),
		)
	}
	return res, nil
}
