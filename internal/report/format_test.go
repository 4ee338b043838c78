package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDescribe_FailedAssembly(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rr := &RunResult{
		ID:       "0b6c1f4e-5d43-4a8e-9d0e-3f9a1c2b7e10",
		Kind:     Assemble,
		ExitCode: 1,
		Attempts: []Attempt{
			{Argv: []string{"megahit", "--out-dir", "asm"}, ExitCode: 1, Stderr: "lost\ncheckpoint", Started: start, Stopped: start.Add(1500 * time.Millisecond)},
			{Argv: []string{"megahit", "--out-dir", "asm", "--continue"}, ExitCode: -1, Signal: "killed", Truncated: true, Started: start, Stopped: start.Add(time.Second)},
		},
		Diagnostics:   []string{"asm/opts.txt"},
		OutDirRemoved: true,
	}
	arts := []Artifact{{Name: ArtifactFinalContigs, Path: "asm/final.contigs.fa"}}

	require.Equal(t, `Run: 0b6c1f4e-5d43-4a8e-9d0e-3f9a1c2b7e10 (assemble) FAILED

Attempt 1: exit 1 in 1.5s
  $ megahit --out-dir asm
    lost
    checkpoint

Attempt 2: signal killed in 1s
  $ megahit --out-dir asm --continue
  (output truncated)

Diagnostics logged: asm/opts.txt
Output directory removed.

Artifacts:
  final_contigs: asm/final.contigs.fa
`, Describe(rr, arts))
}

func TestDescribe_NoArtifacts(t *testing.T) {
	rr := &RunResult{ID: "x", Kind: Cleanup}
	require.Equal(t, "Run: x (cleanup) ok\n", Describe(rr, nil))
}

func TestArtifactKey(t *testing.T) {
	require.Equal(t, "final_contigs", Artifact{Name: ArtifactFinalContigs}.Key())
	require.Equal(t, "subsample_single.3", Artifact{Name: ArtifactSubsampleSingle, Sample: sample(3)}.Key())
}
