// Package errors classifies why a script job failed. Every failure is
// terminal for its job only and is reported to the coordinator as the job's
// "error" property.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	// Duplicate job id or no job slot fits. Never reaches the coordinator.
	Admission
	// Coordinator unreachable, missing file, malformed declarative spec.
	Staging
	// No execution strategy for the container method / script kind.
	Execution
	// Spawn error, non-zero exit, or timeout.
	Runtime
	// Process succeeded but its outputs could not be collected.
	Output
)

func (k Kind) String() string {
	switch k {
	case Admission:
		return "admission"
	case Staging:
		return "staging"
	case Execution:
		return "execution"
	case Runtime:
		return "runtime"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// JobError is an error tagged with the lifecycle phase it came from.
type JobError struct {
	kind Kind
	error
}

func NewError(kind Kind, err error) *JobError {
	if err == nil {
		return nil
	}
	return &JobError{kind, err}
}

// Errorf builds a JobError from a format string.
func Errorf(kind Kind, format string, args ...interface{}) *JobError {
	return &JobError{kind, fmt.Errorf(format, args...)}
}

// Wrap annotates err with msg and tags it with kind.
func Wrap(kind Kind, err error, msg string) *JobError {
	if err == nil {
		return nil
	}
	return &JobError{kind, errors.Wrap(err, msg)}
}

func (e *JobError) Kind() Kind {
	if e == nil {
		return Unknown
	}
	return e.kind
}

func (e *JobError) Cause() error {
	return e.error
}

func (e *JobError) Unwrap() error {
	return e.error
}

// KindOf returns the Kind of the first JobError in err's chain.
func KindOf(err error) Kind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind()
	}
	return Unknown
}
