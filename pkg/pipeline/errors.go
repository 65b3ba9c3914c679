package pipeline

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Pipeline stages, in execution order
const (
	StageValidate = "validate"
	StageLoad     = "load data"
	StageTemplate = "render template"
	StageCapture  = "capture"
	StageSave     = "save image"
)

// StageError reports which stage of a run failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage string, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: pkgerrors.WithStack(err)}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// StackTrace returns the stack recorded where err entered the pipeline, if any
func StackTrace(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}

// Cause returns the innermost error, skipping stage and stack wrappers
func Cause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
