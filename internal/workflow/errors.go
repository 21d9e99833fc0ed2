package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNonRetriable matches (errors.Is) every error wrapped with NonRetriable
	ErrNonRetriable = errors.New("non-retriable")
	// ErrConcurrencyLimited is returned when another run holds the concurrency
	// key. It is not a failure, the run is just tried again later
	ErrConcurrencyLimited = errors.New("concurrency limit reached")
	ErrDuplicateStep      = errors.New("step name used twice in one run")
	ErrUnknownFunction    = errors.New("unknown workflow function")
)

type nonRetriableError struct {
	err error
}

func (e *nonRetriableError) Error() string        { return e.err.Error() }
func (e *nonRetriableError) Unwrap() error        { return e.err }
func (e *nonRetriableError) Is(target error) bool { return target == ErrNonRetriable }

// NonRetriable marks err so the run fails at once instead of being retried
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}

	return &nonRetriableError{err: err}
}

func IsNonRetriable(err error) bool {
	return errors.Is(err, ErrNonRetriable)
}

// StepError is returned by Run and RunTx when the step function fails
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed, %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
