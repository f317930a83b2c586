package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Kind classifies failures so callers can react without string matching.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindRemoteConflict    Kind = "remote_conflict"
	KindRemoteUnavailable Kind = "remote_unavailable"
	KindDependencyMissing Kind = "dependency_missing"
	KindDeleteRejected    Kind = "delete_rejected"
	KindNotFound          Kind = "not_found"
	KindJobStartFailure   Kind = "job_start_failure"
	KindJobTimedOut       Kind = "job_timed_out"
	KindJobFailedRemote   Kind = "job_failed_remote"
	KindInternal          Kind = "internal"
)

// Error is the typed error returned by every orchestrator operation.
// Status is the remote HTTP status when one was received (0 otherwise).
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Status    int
	Detail    string
	Hint      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil && e.Detail == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient. Only idempotent reads
// should act on it.
func (e *Error) IsRetryable() bool { return e.Retryable }

// Is lets errors.Is(err, ErrNotFound) and errors.Is(err, ErrConflict) match typed errors.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindRemoteConflict
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and operation to err. A nil err returns nil.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Configuration reports invalid or contradictory input detected before any remote call.
func Configuration(op, format string, args ...any) *Error {
	return New(KindConfiguration, op, format, args...)
}

// DependencyMissing reports a parent handle that is absent when a child is ensured.
func DependencyMissing(op, format string, args ...any) *Error {
	return New(KindDependencyMissing, op, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// From converts any error into *Error. Errors that are already typed keep their
// kind; context cancellation and deadlines map to RemoteUnavailable.
func From(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindRemoteUnavailable, Op: op, Message: "operation interrupted", Err: err}
	}
	return &Error{Kind: KindInternal, Op: op, Message: "unexpected failure", Err: err}
}
