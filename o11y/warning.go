package o11y

import (
	"context"
	"errors"
)

var errWarning = errors.New("warning")

// warning is a diagnostic that should not fail the operation that raised it. Spans and log
// events carrying one are recorded under the "warning" field instead of "error".
type warning struct {
	msg string
}

func (w *warning) Error() string {
	return w.msg
}

func (w *warning) Is(target error) bool {
	return target == errWarning
}

// NewWarning returns a distinct error that IsWarning recognises, wrapped or not.
func NewWarning(msg string) error {
	return &warning{msg: msg}
}

func IsWarning(err error) bool {
	return errors.Is(err, errWarning)
}

// isCanceled reports a context cancellation or deadline, which are expected on shutdown.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
