package daverr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindTimeout, KindConnectionLost, KindServiceUnavailable, KindFileLocked, KindRateLimited}
	for _, k := range retryable {
		assert.True(t, New(k, "").Retryable(), k.Code())
	}

	terminal := []Kind{KindAuthentication, KindPermissionDenied, KindNotFound, KindParse, KindInvalidConfig,
		KindInsufficientSpace, KindMaxRetriesExceeded, KindCancelled, KindPreconditionFailed, KindFileSystem}
	for _, k := range terminal {
		assert.False(t, New(k, "").Retryable(), k.Code())
	}
}

func TestServerRetryableByStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		assert.True(t, Server(code, "").Retryable(), code)
	}
	for _, code := range []int{501, 505, 507, 418} {
		assert.False(t, Server(code, "").Retryable(), code)
	}
}

func TestRetryDelayFloors(t *testing.T) {
	assert.Equal(t, 60*time.Second, New(KindRateLimited, "").RetryDelay())
	assert.Equal(t, 30*time.Second, New(KindServiceUnavailable, "").RetryDelay())
	assert.Equal(t, 5*time.Second, New(KindFileLocked, "").RetryDelay())
	assert.Equal(t, time.Second, New(KindNetwork, "").RetryDelay())
	assert.Equal(t, time.Second, RetryDelay(errors.New("foreign")))
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{401, KindAuthentication},
		{403, KindPermissionDenied},
		{404, KindNotFound},
		{409, KindFileLocked},
		{412, KindPreconditionFailed},
		{423, KindFileLocked},
		{429, KindRateLimited},
		{500, KindServer},
		{503, KindServer},
		{400, KindServer},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "")
			assert.Equal(t, tt.kind, err.Kind)
			assert.NotEmpty(t, err.Message)
		})
	}
	assert.Equal(t, 503, FromStatus(503, "").Status)
	assert.True(t, FromStatus(503, "").Retryable())
}

func TestErrorsIs(t *testing.T) {
	err := fmt.Errorf("download: %w", FromStatus(404, "gone"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNetwork, KindOf(errors.New("x")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFromTransport(t *testing.T) {
	assert.Nil(t, FromTransport(nil))
	assert.Equal(t, KindCancelled, FromTransport(context.Canceled).Kind)
	assert.Equal(t, KindTimeout, FromTransport(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindTimeout, FromTransport(&net.OpError{Op: "read", Err: timeoutErr{}}).Kind)
	assert.Equal(t, KindConnectionLost, FromTransport(&net.OpError{Op: "dial", Err: errors.New("no route")}).Kind)
	assert.Equal(t, KindConnectionLost, FromTransport(fmt.Errorf("x: %w", syscall.ECONNRESET)).Kind)
	assert.Equal(t, KindNetwork, FromTransport(errors.New("tls: bad certificate")).Kind)

	orig := New(KindAuthentication, "")
	assert.Same(t, orig, FromTransport(fmt.Errorf("wrap: %w", orig)))
}

func TestFromIOStructured(t *testing.T) {
	_, statErr := os.Stat(t.TempDir() + "/missing")
	require.Error(t, statErr)
	assert.Equal(t, KindNotFound, FromIO(statErr).Kind)

	assert.Equal(t, KindPermissionDenied, FromIO(&fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}).Kind)
	assert.Equal(t, KindInsufficientSpace, FromIO(&fs.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC}).Kind)
	assert.Equal(t, KindFileLocked, FromIO(&fs.PathError{Op: "open", Path: "/x", Err: syscall.EBUSY}).Kind)
	assert.Equal(t, KindTimeout, FromIO(&fs.PathError{Op: "read", Path: "/x", Err: syscall.ETIMEDOUT}).Kind)

	transient := FromIO(&fs.PathError{Op: "read", Path: "/x", Err: syscall.EAGAIN})
	assert.Equal(t, KindFileSystem, transient.Kind)
	assert.True(t, transient.Retryable())
}

func TestFromIOMessageFallback(t *testing.T) {
	assert.Equal(t, KindInsufficientSpace, FromIO(errors.New("There is not enough space on the disk")).Kind)
	assert.Equal(t, KindFileLocked, FromIO(errors.New("device or resource busy")).Kind)

	fsErr := FromIO(errors.New("resource temporarily unavailable"))
	assert.Equal(t, KindFileSystem, fsErr.Kind)
	assert.True(t, fsErr.Retryable())

	plain := FromIO(errors.New("bad descriptor"))
	assert.Equal(t, KindFileSystem, plain.Kind)
	assert.False(t, plain.Retryable())
}

func TestFriendlyMessage(t *testing.T) {
	for k := KindNetwork; k <= KindPreconditionFailed; k++ {
		msg := New(k, "").FriendlyMessage()
		assert.NotEmpty(t, msg)
		assert.NotContains(t, msg, k.Code())
	}
	assert.Contains(t, Server(418, "").FriendlyMessage(), "418")
	assert.Empty(t, FriendlyMessage(nil))
	assert.Contains(t, FriendlyMessage(errors.New("boom")), "logs")
}

func TestMaxRetries(t *testing.T) {
	last := Server(503, "")
	err := MaxRetries(4, last)
	assert.Equal(t, KindMaxRetriesExceeded, err.Kind)
	assert.False(t, err.Retryable())
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "4 attempts")
}
