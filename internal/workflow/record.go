package workflow

import (
	"fmt"
	"strings"

	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
	"github.com/google/uuid"
)

// maxStderrLines is the number of trailing stderr lines kept per attempt.
const maxStderrLines = 40

func newRun(kind report.Kind) *report.RunResult {
	return &report.RunResult{ID: uuid.New().String(), Kind: kind}
}

// recordAttempt appends res to the run and makes it the reported status.
func recordAttempt(rr *report.RunResult, res *runner.Result) {
	rr.Attempts = append(rr.Attempts, report.Attempt{
		RunID:     res.RunID,
		Argv:      res.Argv,
		ExitCode:  res.ExitCode,
		Signal:    res.Status.Signal,
		Stderr:    tailLines(string(res.Stderr), maxStderrLines),
		Truncated: res.Truncated,
		Started:   res.Started,
		Stopped:   res.Stopped,
	})
	rr.ExitCode = res.ExitCode
	rr.Signal = res.Status.Signal
}

func artifact(name, path string) report.Artifact {
	return report.Artifact{Name: name, Path: path}
}

func sampleArtifact(name string, i int, path string) report.Artifact {
	return report.Artifact{Name: name, Sample: &i, Path: path}
}

// tailLines keeps the last maxLines lines of s.
func tailLines(s string, maxLines int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	dropped := len(lines) - maxLines
	return fmt.Sprintf("... (%d earlier lines)\n", dropped) + strings.Join(lines[dropped:], "\n")
}
