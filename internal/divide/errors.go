package divide

import (
	"errors"
	"fmt"
)

var (
	ErrParseFailure         = errors.New("parse failure")
	ErrRefactoringDetection = errors.New("refactoring detection failure")
	ErrExternalProcess      = errors.New("external process failure")
	ErrWorkerFault          = errors.New("worker fault")
)

// AnalysisError is the failure of one commit pair analysis. Kind is one of
// the sentinels of this package.
type AnalysisError struct {
	Kind error
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(kind, err error) error {
	return &AnalysisError{Kind: kind, Err: err}
}

// Reason returns a short failure reason for err, suitable for logs and
// metric labels.
func Reason(err error) string {
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		return "unknown"
	}
	switch ae.Kind {
	case ErrParseFailure:
		return "parse"
	case ErrRefactoringDetection:
		return "refactoring"
	case ErrExternalProcess:
		return "process"
	case ErrWorkerFault:
		return "worker"
	}
	return "unknown"
}
