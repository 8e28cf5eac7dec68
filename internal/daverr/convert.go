package daverr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// FromTransport classifies a failure that happened before an HTTP response was received.
func FromTransport(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Wrap(KindCancelled, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return Wrap(KindTimeout, "request timed out", err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return Wrap(KindConnectionLost, "connection lost", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindTimeout, "request timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return Wrap(KindConnectionLost, "connect failed", err)
	}

	return Wrap(KindNetwork, "request failed", err)
}

// FromStatus maps an HTTP status code to the taxonomy.
func FromStatus(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		return New(KindAuthentication, message)
	case http.StatusForbidden:
		return New(KindPermissionDenied, message)
	case http.StatusNotFound:
		return New(KindNotFound, message)
	case http.StatusConflict, http.StatusLocked:
		return New(KindFileLocked, message)
	case http.StatusPreconditionFailed:
		return New(KindPreconditionFailed, message)
	case http.StatusTooManyRequests:
		return New(KindRateLimited, message)
	case http.StatusInsufficientStorage:
		return &Error{Kind: KindInsufficientSpace, Status: status, Message: message}
	default:
		return Server(status, message)
	}
}

// FromIO classifies a local filesystem error. Structured error kinds and errno
// values are checked first; message matching is a last resort for platforms
// that report these conditions without a usable errno.
func FromIO(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Wrap(KindCancelled, "cancelled", err)
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(KindNotFound, "file not found", err)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(KindPermissionDenied, "permission denied", err)
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return Wrap(KindInsufficientSpace, "no space left on device", err)
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY):
		return Wrap(KindFileLocked, "file is busy", err)
	case errors.Is(err, syscall.ETIMEDOUT):
		return Wrap(KindTimeout, "operation timed out", err)
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED):
		return Wrap(KindConnectionLost, "connection lost", err)
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
		return &Error{Kind: KindFileSystem, Message: "temporarily unavailable", Err: err, transient: true}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no space left"), strings.Contains(msg, "not enough space"), strings.Contains(msg, "disk full"):
		return Wrap(KindInsufficientSpace, "no space left on device", err)
	case strings.Contains(msg, "resource busy"), strings.Contains(msg, "being used by another process"), strings.Contains(msg, "locked"):
		return Wrap(KindFileLocked, "file is busy", err)
	}

	fsErr := &Error{Kind: KindFileSystem, Message: "filesystem error", Err: err}
	if strings.Contains(msg, "temporarily unavailable") || strings.Contains(msg, "try again") {
		fsErr.transient = true
	}
	return fsErr
}

// InvalidConfigf is a shorthand for configuration errors.
func InvalidConfigf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidConfig, Message: fmt.Sprintf(format, args...)}
}
