// Package execer runs one Unix command and lets the caller wait for it or
// kill it. It knows nothing about jobs, slots or the coordinator; it is at
// the level of os/exec.
package execer

import (
	"io"
)

// LogTags identify the job a process belongs to in log lines.
type LogTags struct {
	JobID string
	Tag   string
}

type Command struct {
	Argv []string
	// Working directory of the process. Empty means the caller's.
	Dir string
	// Added to the parent environment.
	EnvVars map[string]string
	Stdout  io.Writer
	Stderr  io.Writer
	LogTags
}

type ProcessState int

const (
	UNKNOWN ProcessState = iota
	RUNNING
	// Exited on its own; ExitCode is valid.
	COMPLETE
	// Could not be waited on, or was killed; Error is set.
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

func (s ProcessState) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Execer interface {
	Exec(command Command) (Process, error)
}

type Process interface {
	// Wait blocks until the process has exited.
	Wait() ProcessStatus
	// Abort kills the process and everything it spawned. Safe to call
	// concurrently with Wait and more than once.
	Abort() ProcessStatus
}

type ProcessStatus struct {
	State    ProcessState
	ExitCode int
	Error    string
}
