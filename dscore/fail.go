package dscore

import (
	"fmt"

	"github.com/juju/errors"
)

// Fail is a pipeline failure: a status, a message and the location that raised it.
type Fail struct {
	errors.Err
	status Status
}

// NewFail records a failure at the caller's location.
func NewFail(status Status, format string, args ...any) *Fail {
	f := &Fail{Err: errors.NewErr(format, args...), status: status}
	f.SetLocation(1)
	return f
}

// WrapFail records a failure caused by a backend-native error.
func WrapFail(status Status, cause error, format string, args ...any) *Fail {
	f := &Fail{Err: errors.NewErrWithCause(cause, format, args...), status: status}
	f.SetLocation(1)
	return f
}

// Status returns the failure code.
func (f *Fail) Status() Status { return f.status }

// Origin renders the recorded location as "where:line".
func (f *Fail) Origin() string {
	var loc interface{ Location() (string, int) } = &f.Err
	where, line := loc.Location()
	if where == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", where, line)
}

// Is matches a Status sentinel or another Fail with the same status.
func (f *Fail) Is(target error) bool {
	switch t := target.(type) {
	case Status:
		return t == f.status
	case *Fail:
		return t != nil && t.status == f.status
	}
	return false
}

// StatusOf extracts the status carried by err, or 0.
func StatusOf(err error) Status {
	var f *Fail
	if errors.As(err, &f) {
		return f.status
	}
	return 0
}

// AsFail returns err as a Fail, wrapping foreign errors with the fallback status.
func AsFail(err error, fallback Status) *Fail {
	if err == nil {
		return nil
	}
	var f *Fail
	if errors.As(err, &f) {
		return f
	}
	wrapped := &Fail{Err: errors.NewErrWithCause(err, ""), status: fallback}
	wrapped.SetLocation(1)
	return wrapped
}
