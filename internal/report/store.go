// Package report provides structured persistence and retrieval of
// supervised tool runs. Each run is stored as a typed record and can be
// queried by artifact name or sample index.
package report

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Assemble is an assembler run with checkpoint retry.
	Assemble Kind = "assemble"
	// Subsample is a single read-subsampling run.
	Subsample Kind = "subsample"
	// Cleanup is an output directory cleanup (compression) run.
	Cleanup Kind = "cleanup"
)

// Artifact names.
const (
	ArtifactFinalContigs     = "final_contigs"
	ArtifactOutDir           = "out_dir"
	ArtifactSubsampleForward = "subsample_forward"
	ArtifactSubsampleReverse = "subsample_reverse"
	ArtifactSubsampleSingle  = "subsample_single"
)

// Store persists and retrieves run records.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the persisted record of one supervised invocation.
type RunResult struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	ExitCode int    `json:"exit_code"`
	Signal   string `json:"signal,omitempty"`

	Attempts  []Attempt  `json:"attempts"`
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Terminal assembly failure fields.
	Diagnostics   []string `json:"diagnostics,omitempty"` // diagnostic files that were logged
	OutDirRemoved bool     `json:"out_dir_removed,omitempty"`
}

// Failed reports whether the final attempt did not exit with code 0.
func (r *RunResult) Failed() bool {
	return r.ExitCode != 0 || r.Signal != ""
}

// LastAttempt returns the attempt whose status the run reports, or nil.
func (r *RunResult) LastAttempt() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Attempt is one child process execution within a run.
type Attempt struct {
	RunID     string    `json:"run_id"`
	Argv      []string  `json:"argv"`
	ExitCode  int       `json:"exit_code"`
	Signal    string    `json:"signal,omitempty"`
	Stderr    string    `json:"stderr,omitempty"` // tail only
	Truncated bool      `json:"truncated,omitempty"`
	Started   time.Time `json:"started"`
	Stopped   time.Time `json:"stopped"`
}

// Duration returns the wall-clock time of the attempt.
func (a Attempt) Duration() time.Duration {
	return a.Stopped.Sub(a.Started)
}

// Artifact is an expected output path. Its existence is not implied.
type Artifact struct {
	Name   string `json:"name"`
	Sample *int   `json:"sample,omitempty"`
	Path   string `json:"path"`
}

// ByName returns all artifacts with the given name.
func ByName(result *RunResult, name string) []Artifact {
	var out []Artifact
	for _, a := range result.Artifacts {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// BySample returns all artifacts belonging to subsample i.
func BySample(result *RunResult, i int) []Artifact {
	var out []Artifact
	for _, a := range result.Artifacts {
		if a.Sample != nil && *a.Sample == i {
			out = append(out, a)
		}
	}
	return out
}

// Select resolves an artifact query:
//
//	""                    all artifacts
//	"final_contigs"       artifacts by name
//	"3"                   all artifacts of subsample 3
//	"subsample_forward.3" one artifact by name and sample
func Select(result *RunResult, query string) []Artifact {
	if query == "" {
		return result.Artifacts
	}
	if i, err := strconv.Atoi(query); err == nil {
		return BySample(result, i)
	}
	name, sample := splitQuery(query)
	if sample < 0 {
		return ByName(result, name)
	}

	var out []Artifact
	for _, a := range ByName(result, name) {
		if a.Sample != nil && *a.Sample == sample {
			out = append(out, a)
		}
	}
	return out
}

// splitQuery splits "name.N" into ("name", N). Without a numeric suffix the
// sample is -1.
// "subsample_forward.3" → ("subsample_forward", 3)
// "final_contigs" → ("final_contigs", -1)
func splitQuery(query string) (string, int) {
	dot := strings.LastIndex(query, ".")
	if dot < 0 {
		return query, -1
	}
	i, err := strconv.Atoi(query[dot+1:])
	if err != nil || i < 0 {
		return query, -1
	}
	return query[:dot], i
}
