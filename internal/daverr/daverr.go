package daverr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure by how the sync core should react to it.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindConnectionLost
	KindServiceUnavailable
	KindFileLocked
	KindRateLimited
	KindServer
	KindAuthentication
	KindPermissionDenied
	KindNotFound
	KindParse
	KindInvalidConfig
	KindFileSystem
	KindInsufficientSpace
	KindMaxRetriesExceeded
	KindCancelled
	KindPreconditionFailed
)

// Stable machine readable codes, one per kind.
const (
	CodeNetwork            = "E_NETWORK"
	CodeTimeout            = "E_TIMEOUT"
	CodeConnectionLost     = "E_CONNECTION_LOST"
	CodeServiceUnavailable = "E_SERVICE_UNAVAILABLE"
	CodeFileLocked         = "E_FILE_LOCKED"
	CodeRateLimited        = "E_RATE_LIMITED"
	CodeServer             = "E_SERVER"
	CodeAuthentication     = "E_AUTHENTICATION"
	CodePermissionDenied   = "E_PERMISSION_DENIED"
	CodeNotFound           = "E_NOT_FOUND"
	CodeParse              = "E_PARSE"
	CodeInvalidConfig      = "E_INVALID_CONFIG"
	CodeFileSystem         = "E_FILESYSTEM"
	CodeInsufficientSpace  = "E_INSUFFICIENT_SPACE"
	CodeMaxRetries         = "E_MAX_RETRIES_EXCEEDED"
	CodeCancelled          = "E_CANCELLED"
	CodePreconditionFailed = "E_PRECONDITION_FAILED"
)

var kindCodes = map[Kind]string{
	KindNetwork:            CodeNetwork,
	KindTimeout:            CodeTimeout,
	KindConnectionLost:     CodeConnectionLost,
	KindServiceUnavailable: CodeServiceUnavailable,
	KindFileLocked:         CodeFileLocked,
	KindRateLimited:        CodeRateLimited,
	KindServer:             CodeServer,
	KindAuthentication:     CodeAuthentication,
	KindPermissionDenied:   CodePermissionDenied,
	KindNotFound:           CodeNotFound,
	KindParse:              CodeParse,
	KindInvalidConfig:      CodeInvalidConfig,
	KindFileSystem:         CodeFileSystem,
	KindInsufficientSpace:  CodeInsufficientSpace,
	KindMaxRetriesExceeded: CodeMaxRetries,
	KindCancelled:          CodeCancelled,
	KindPreconditionFailed: CodePreconditionFailed,
}

// Code returns the machine readable code of the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return "E_UNKNOWN"
}

func (k Kind) String() string {
	return k.Code()
}

// Sentinels for errors.Is. Matching is done on Kind only.
var (
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrConnectionLost     = &Error{Kind: KindConnectionLost}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrFileLocked         = &Error{Kind: KindFileLocked}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrServer             = &Error{Kind: KindServer}
	ErrAuthentication     = &Error{Kind: KindAuthentication}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrParse              = &Error{Kind: KindParse}
	ErrInvalidConfig      = &Error{Kind: KindInvalidConfig}
	ErrFileSystem         = &Error{Kind: KindFileSystem}
	ErrInsufficientSpace  = &Error{Kind: KindInsufficientSpace}
	ErrMaxRetriesExceeded = &Error{Kind: KindMaxRetriesExceeded}
	ErrCancelled          = &Error{Kind: KindCancelled}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
)

// Error is the single error type surfaced by the sync core.
type Error struct {
	Kind Kind
	// HTTP status for server side failures, or the attempt count for KindMaxRetriesExceeded
	Status  int
	Message string
	Err     error
	// transient filesystem failures are retryable, see FromIO
	transient bool
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Server creates a server error for the given HTTP status.
func Server(status int, message string) *Error {
	return &Error{Kind: KindServer, Status: status, Message: message}
}

// MaxRetries creates the synthetic error returned when a retry loop runs out of attempts.
func MaxRetries(attempts int, last error) *Error {
	return &Error{Kind: KindMaxRetriesExceeded, Status: attempts, Message: fmt.Sprintf("gave up after %d attempts", attempts), Err: last}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.defaultMessage()
	}
	if e.Kind == KindServer && e.Status != 0 {
		msg = fmt.Sprintf("http %d: %s", e.Status, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Code returns the machine readable error code.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Retryable reports whether the failure is likely transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindConnectionLost, KindServiceUnavailable,
		KindFileLocked, KindRateLimited:
		return true
	case KindServer:
		switch e.Status {
		case 500, 502, 503, 504:
			return true
		}
		return false
	case KindFileSystem:
		return e.transient
	default:
		return false
	}
}

// RetryDelay is the minimum wait before the next attempt.
func (e *Error) RetryDelay() time.Duration {
	switch e.Kind {
	case KindRateLimited:
		return 60 * time.Second
	case KindServiceUnavailable:
		return 30 * time.Second
	case KindFileLocked:
		return 5 * time.Second
	default:
		return time.Second
	}
}

func (e *Error) defaultMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "network error"
	case KindTimeout:
		return "operation timed out"
	case KindConnectionLost:
		return "connection lost"
	case KindServiceUnavailable:
		return "service unavailable"
	case KindFileLocked:
		return "resource is locked"
	case KindRateLimited:
		return "rate limited"
	case KindServer:
		return "server error"
	case KindAuthentication:
		return "authentication failed"
	case KindPermissionDenied:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindParse:
		return "invalid response"
	case KindInvalidConfig:
		return "invalid configuration"
	case KindFileSystem:
		return "filesystem error"
	case KindInsufficientSpace:
		return "insufficient space"
	case KindMaxRetriesExceeded:
		return "max retries exceeded"
	case KindCancelled:
		return "operation cancelled"
	case KindPreconditionFailed:
		return "remote changed concurrently"
	}
	return "unknown error"
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindNetwork when err carries no *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether err is a retryable *Error. Foreign errors are not retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable()
	}
	return false
}

// RetryDelay returns the delay floor for err, or one second for foreign errors.
func RetryDelay(err error) time.Duration {
	if e, ok := As(err); ok {
		return e.RetryDelay()
	}
	return time.Second
}
