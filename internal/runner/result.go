package runner

import (
	"fmt"
	"time"
)

// Status describes how a child process terminated.
type Status struct {
	ExitCode int    `json:"exit_code"`        // -1 when killed by a signal
	Signaled bool   `json:"signaled"`         // true if a signal terminated the process
	Signal   string `json:"signal,omitempty"` // e.g. "killed"
}

// Success reports whether the process exited normally with code 0.
func (s Status) Success() bool {
	return !s.Signaled && s.ExitCode == 0
}

func (s Status) String() string {
	if s.Signaled {
		return "signal: " + s.Signal
	}
	return fmt.Sprintf("exit status %d", s.ExitCode)
}

// Result holds the output of a command execution.
type Result struct {
	RunID     string    // unique identifier for this execution
	Argv      []string  // command as executed
	Status    Status    // termination status
	ExitCode  int       // same as Status.ExitCode
	Stdout    []byte    // captured stdout (may be truncated)
	Stderr    []byte    // captured stderr (may be truncated)
	Truncated bool      // true if output exceeded the size cap
	Started   time.Time // UTC
	Stopped   time.Time // UTC
}
