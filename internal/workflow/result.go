package workflow

import (
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/runner"
)

// ReadInputs names the paired and unpaired read files of one library.
// All three are passed to the tools as given; the tools reject empty paths.
type ReadInputs struct {
	Forward string `json:"forward"`
	Reverse string `json:"reverse"`
	Single  string `json:"single"`
}

// Result is the outcome of one supervised invocation.
//
// Outputs are computed from the inputs alone, whether or not the tool
// succeeded; they do not imply that the files exist.
type Result[O any] struct {
	Run      *report.RunResult // persisted record: attempts, artifacts, diagnostics
	Status   runner.Status     // status of the last attempt
	ExitCode int               // 0 on success
	Outputs  O
}

// Success reports whether the final attempt exited with code 0.
func (r *Result[O]) Success() bool {
	return r.ExitCode == 0
}

// AssemblyOutputs lists the expected assembly artifacts.
type AssemblyOutputs struct {
	FinalContigs string `json:"final_contigs"`
}

// SubsampleFiles are the three read files of one subsample.
type SubsampleFiles struct {
	Forward string `json:"forward"`
	Reverse string `json:"reverse"`
	Single  string `json:"single"`
}

// SubsampleOutputs lists the expected subsampling artifacts. Subsamples is
// indexed by sample number, 0..N-1.
type SubsampleOutputs struct {
	OutDir     string           `json:"out_dir"`
	Subsamples []SubsampleFiles `json:"subsamples"`
}

// CleanupOutputs lists the files handed to the compressor.
type CleanupOutputs struct {
	Compressed []string `json:"compressed"`
}

type (
	AssemblyResult  = Result[AssemblyOutputs]
	SubsampleResult = Result[SubsampleOutputs]
	CleanupResult   = Result[CleanupOutputs]
)
