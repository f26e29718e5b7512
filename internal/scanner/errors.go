package scanner

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the step of a scan cycle that failed.
type ErrorKind int

const (
	// ErrorKindQuery means the stale query against the store failed.
	ErrorKindQuery ErrorKind = iota + 1
	// ErrorKindReport means the logging API did not acknowledge the batch.
	ErrorKindReport
	// ErrorKindEvict means the batch was reported but the range delete failed.
	ErrorKindEvict
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindQuery:
		return "query"
	case ErrorKindReport:
		return "report"
	case ErrorKindEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// Sentinels matched by CycleError.Is, so callers can write
// errors.Is(err, scanner.ErrReport).
var (
	ErrQuery  = errors.New("stale query failed")
	ErrReport = errors.New("stale report failed")
	ErrEvict  = errors.New("stale eviction failed")
)

// CycleError is the only error type RunCycle returns.
type CycleError struct {
	Kind ErrorKind
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("scan cycle %s step: %v", e.Kind, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *CycleError) Is(target error) bool {
	switch target {
	case ErrQuery:
		return e.Kind == ErrorKindQuery
	case ErrReport:
		return e.Kind == ErrorKindReport
	case ErrEvict:
		return e.Kind == ErrorKindEvict
	}
	return false
}

// KindOf returns the kind of a cycle error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
