// Package apierr defines the error-kind taxonomy shared by every
// request-facing package: RequestMalformed, StorageFailure,
// DecodeFailure, ComputeFailure and WriterFailure. Errors are wrapped
// with github.com/pkg/errors so a full stack trace is available via
// "%+v" for callers (ngshard) that need one.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies why a request failed.
type Kind int

const (
	// RequestMalformed covers missing/invalid JSON fields, a
	// shard-size that isn't 1024 where the endpoint requires it, and
	// non-integer coordinates.
	RequestMalformed Kind = iota
	// StorageFailure covers blob read/write errors and truncated
	// byte ranges from the object store.
	StorageFailure
	// DecodeFailure covers a corrupt or mis-sized tile image.
	DecodeFailure
	// ComputeFailure covers warp/CLAHE/downsample internal errors.
	ComputeFailure
	// WriterFailure covers the sharded-volume writer reporting an
	// error.
	WriterFailure
)

func (k Kind) String() string {
	switch k {
	case RequestMalformed:
		return "RequestMalformed"
	case StorageFailure:
		return "StorageFailure"
	case DecodeFailure:
		return "DecodeFailure"
	case ComputeFailure:
		return "ComputeFailure"
	case WriterFailure:
		return "WriterFailure"
	default:
		return "Unknown"
	}
}

// kindedError pairs a Kind with a stack-traced cause.
type kindedError struct {
	kind  Kind
	cause error
}

func (e *kindedError) Error() string { return e.cause.Error() }
func (e *kindedError) Cause() error  { return e.cause }
func (e *kindedError) Unwrap() error { return e.cause }

// Format implements fmt.Formatter so "%+v" prints the wrapped stack
// trace, the same way github.com/pkg/errors formats its own errors.
func (e *kindedError) Format(s fmt.State, verb rune) {
	if f, ok := e.cause.(fmt.Formatter); ok {
		f.Format(s, verb)
		return
	}
	fmt.Fprint(s, e.cause.Error())
}

// New wraps msg as a new error of the given kind with a stack trace
// attached at the call site.
func New(kind Kind, msg string) error {
	return &kindedError{kind: kind, cause: errors.New(msg)}
}

// Newf is the formatted form of New.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindedError{kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap annotates err with msg and attaches a stack trace recorded at
// the call site, tagging it with kind.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, cause: errors.Wrap(err, msg)}
}

// Wrapf is the formatted form of Wrap.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

// KindOf extracts the Kind tagged onto err, defaulting to
// ComputeFailure if err was never tagged (an invariant violation
// inside the core, not a classified external failure).
func KindOf(err error) Kind {
	var ke *kindedError
	for err != nil {
		if k, ok := err.(*kindedError); ok {
			ke = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ke == nil {
		return ComputeFailure
	}
	return ke.kind
}

// HTTPStatus maps every Kind to the HTTP status the endpoints use.
// Every kind here resolves to 400: the propagation policy in spec §7
// treats each endpoint as a strict boundary that never surfaces a 5xx.
func HTTPStatus(Kind) int {
	return http.StatusBadRequest
}
