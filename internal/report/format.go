package report

import (
	"fmt"
	"strings"
	"time"
)

// Describe renders a run for humans: a header, every attempt with its
// command line and stderr tail, terminal-failure facts, and artifacts.
func Describe(result *RunResult, artifacts []Artifact) string {
	var b strings.Builder

	status := "ok"
	if result.Failed() {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Run: %s (%s) %s\n", result.ID, result.Kind, status)

	for i, a := range result.Attempts {
		fmt.Fprintln(&b)
		exit := fmt.Sprintf("exit %d", a.ExitCode)
		if a.Signal != "" {
			exit = "signal " + a.Signal
		}
		fmt.Fprintf(&b, "Attempt %d: %s in %s\n", i+1, exit, a.Duration().Round(time.Millisecond))
		fmt.Fprintf(&b, "  $ %s\n", strings.Join(a.Argv, " "))
		if a.Stderr != "" {
			for _, line := range strings.Split(a.Stderr, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
		if a.Truncated {
			fmt.Fprintln(&b, "  (output truncated)")
		}
	}

	if len(result.Diagnostics) > 0 || result.OutDirRemoved {
		fmt.Fprintln(&b)
	}
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(&b, "Diagnostics logged: %s\n", strings.Join(result.Diagnostics, ", "))
	}
	if result.OutDirRemoved {
		fmt.Fprintln(&b, "Output directory removed.")
	}

	if len(artifacts) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Artifacts:")
		for _, a := range artifacts {
			fmt.Fprintf(&b, "  %s: %s\n", a.Key(), a.Path)
		}
	}

	return b.String()
}

// Key is the query form that selects exactly this artifact.
func (a Artifact) Key() string {
	if a.Sample == nil {
		return a.Name
	}
	return fmt.Sprintf("%s.%d", a.Name, *a.Sample)
}
