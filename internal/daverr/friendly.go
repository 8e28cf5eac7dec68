package daverr

import (
	"errors"
	"fmt"
)

// FriendlyMessage renders err for end users. Internal kind names never leak.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Check the logs for details."
	}
	return e.FriendlyMessage()
}

func (e *Error) FriendlyMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Network problem. Check your connection settings."
	case KindTimeout:
		return "The request timed out. Please try again later."
	case KindConnectionLost:
		return "The connection was lost. Reconnecting..."
	case KindServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	case KindFileLocked:
		return "The file is in use by another program. Please try again later."
	case KindRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case KindServer:
		if e.Status >= 500 && e.Status <= 503 {
			return "The server is temporarily unavailable. Please try again later."
		}
		return fmt.Sprintf("The server returned an error (%d).", e.Status)
	case KindAuthentication:
		return "Wrong username or password. Check your WebDAV settings."
	case KindPermissionDenied:
		return "Access denied. Check the account permissions."
	case KindNotFound:
		return "The file or directory does not exist."
	case KindParse:
		return "The server sent a response that could not be understood."
	case KindInvalidConfig:
		if e.Message != "" {
			return "Invalid configuration: " + e.Message
		}
		return "Invalid configuration."
	case KindFileSystem:
		return "A local file operation failed."
	case KindInsufficientSpace:
		return "Not enough disk space. Free up some storage."
	case KindMaxRetriesExceeded:
		return "The operation failed after several retries."
	case KindCancelled:
		return "The operation was cancelled."
	case KindPreconditionFailed:
		return "The remote file changed while syncing. Sync again to review the conflict."
	}
	return "Something went wrong. Check the logs for details."
}
