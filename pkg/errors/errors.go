package errors

import (
	"errors"
	"fmt"
)

// Kind classifies cache failures into the two buckets callers care about:
// the connection is unusable, or a single statement failed.
type Kind string

const (
	// KindConnection marks the backend handle as unusable (network loss,
	// auth failure, closed pool). Not retried internally.
	KindConnection Kind = "connection"
	// KindStorage marks a single statement failure (bad SQL, unexpected
	// constraint violation) on an otherwise healthy connection.
	KindStorage Kind = "storage"
	// KindUnsupported marks an operation the backend cannot provide.
	KindUnsupported Kind = "unsupported"
)

// CacheError is the structured error returned by cache backends.
type CacheError struct {
	Kind Kind
	Op   string // operation that failed: "get", "put", "create table", ...
	Err  error
}

func (e *CacheError) Error() string {
	if e == nil {
		return "<nil>"
	}

	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("cache: %s: %s error: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("cache: %s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("cache: %s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("cache: %s error", e.Kind)
}

// Unwrap exposes the underlying driver error for errors.Is / errors.As.
func (e *CacheError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches against the exported sentinels by kind, so that
// errors.Is(err, ErrConnection) works regardless of op or cause.
func (e *CacheError) Is(target error) bool {
	t, ok := target.(*CacheError)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels used with errors.Is to test failure class.
var (
	ErrConnection  = &CacheError{Kind: KindConnection}
	ErrStorage     = &CacheError{Kind: KindStorage}
	ErrUnsupported = &CacheError{Kind: KindUnsupported}
)

// Connection wraps err as a connection-level failure.
func Connection(op string, err error) *CacheError {
	return &CacheError{Kind: KindConnection, Op: op, Err: err}
}

// Storage wraps err as a statement-level failure.
func Storage(op string, err error) *CacheError {
	return &CacheError{Kind: KindStorage, Op: op, Err: err}
}

// Unsupported reports an operation the backend does not implement.
func Unsupported(op string) *CacheError {
	return &CacheError{Kind: KindUnsupported, Op: op}
}

// IsConnection reports whether err is a connection-level cache failure.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsStorage reports whether err is a statement-level cache failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
