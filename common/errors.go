package common

import (
	"errors"
	"fmt"
)

// ErrorClass tells the frame loop what to do with a failure.
type ErrorClass int

const (
	// ClassFatal aborts chart activation. The previous chart, if any, keeps running.
	ClassFatal ErrorClass = iota

	// ClassStep skips the failing step's submission for the current frame only.
	ClassStep

	// ClassTransient is logged while a previous valid object keeps serving frames.
	ClassTransient
)

// String returns the lowercase class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassStep:
		return "step"
	case ClassTransient:
		return "transient"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

var (
	ErrUnknownImage     = errors.New("unknown image")
	ErrUnknownBuffer    = errors.New("unknown buffer")
	ErrUnknownMesh      = errors.New("unknown mesh")
	ErrMissingBinding   = errors.New("missing binding")
	ErrAmbiguousBinding = errors.New("ambiguous binding")
	ErrSizeLimit        = errors.New("image exceeds size limit")
	ErrCycle            = errors.New("resource reference cycle")
	ErrNoMipChain       = errors.New("image has no mip chain")
	ErrUnknownGlobal    = errors.New("unknown global uniform")
	ErrSchema           = errors.New("malformed shader schema")
	ErrCompile          = errors.New("shader compilation failed")
	ErrInvalidChart     = errors.New("invalid chart")
)

// EngineError is an error tagged with its handling class.
type EngineError struct {
	Class ErrorClass

	// Op is the operation that failed, e.g. "resolve" or "build pipeline".
	Op string

	// Subject names the chart element involved (image id, step id, shader path).
	Subject string

	Err error
}

func (e *EngineError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Subject, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a chart-load failure.
func Fatal(op, subject string, err error) error {
	return &EngineError{Class: ClassFatal, Op: op, Subject: subject, Err: err}
}

// StepError wraps err as a recoverable failure of one step.
func StepError(op, subject string, err error) error {
	return &EngineError{Class: ClassStep, Op: op, Subject: subject, Err: err}
}

// Transient wraps err as a recoverable failure that leaves a previous good object in service.
func Transient(op, subject string, err error) error {
	return &EngineError{Class: ClassTransient, Op: op, Subject: subject, Err: err}
}

// ClassOf reports the class of the outermost EngineError in err's chain.
// Untagged errors are treated as fatal.
//
// Parameters:
//   - err: the error to classify
//
// Returns:
//   - ErrorClass: the handling class
func ClassOf(err error) ErrorClass {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Class
	}
	return ClassFatal
}
