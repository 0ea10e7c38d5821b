package execers

import (
	"github.com/stanplayground/jobrunner/runner/execer"
)

// ErrExecer fails every Exec, like a missing container runtime binary would.
type ErrExecer struct {
	Err error
}

func (e *ErrExecer) Exec(command execer.Command) (execer.Process, error) {
	return nil, e.Err
}
