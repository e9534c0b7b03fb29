package source

import (
	"errors"
	"fmt"
)

// Kind classifies a connector failure.
type Kind int

const (
	// KindInvalidPath means the configured address is malformed.
	KindInvalidPath Kind = iota + 1
	// KindAuthFailed means credentials are missing or were rejected.
	KindAuthFailed
	// KindNotFound means the remote object or file does not exist.
	KindNotFound
	// KindTransport means a connection-level failure (dial, timeout, IO).
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid path"
	case KindAuthFailed:
		return "authentication failed"
	case KindNotFound:
		return "not found"
	case KindTransport:
		return "transport failure"
	default:
		return "unknown"
	}
}

// Error is the tagged failure returned by every connector operation.
// The error chain is preserved so errors.Is/As keep working.
type Error struct {
	Kind Kind
	Op   string // "probe" or "fetch"
	Addr string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Addr, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err carries a connector Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

func invalidPathf(op, addr, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidPath, Op: op, Addr: addr, Err: fmt.Errorf(format, args...)}
}

func authFailed(op, addr string, err error) *Error {
	return &Error{Kind: KindAuthFailed, Op: op, Addr: addr, Err: err}
}

func notFound(op, addr string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Addr: addr, Err: err}
}

func transport(op, addr string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Addr: addr, Err: err}
}
