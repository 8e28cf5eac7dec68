package dav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/davtest"
	"github.com/davsync/davsync/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestConnection(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)
	require.NoError(t, c.TestConnection(t.Context()))
	assert.Equal(t, 1, srv.Count("PROPFIND"))
}

func TestTestConnectionBadCredentials(t *testing.T) {
	srv := davtest.NewServer(t)
	cfg := NewConfig(srv.URL, davtest.Username, "wrong")
	c, err := New(cfg, WithExecutor(retry.New(retry.Default(), retry.WithSleep(noSleep))))
	require.NoError(t, err)

	err = c.TestConnection(t.Context())
	assert.ErrorIs(t, err, daverr.ErrAuthentication)
	// authentication failures are never retried
	assert.Equal(t, 1, srv.Count("PROPFIND"))
}

func TestTestConnectionWithProgress(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.FailNext("PROPFIND", http.StatusBadGateway, 1)
	c := newTestClient(t, srv)

	var snaps []retry.Progress
	require.NoError(t, c.TestConnectionWithProgress(t.Context(), func(p retry.Progress) {
		snaps = append(snaps, p)
	}))
	require.Len(t, snaps, 3)
	assert.Error(t, snaps[1].LastErr)
	assert.True(t, snaps[2].IsFinal())
	assert.Equal(t, 2, srv.Count("PROPFIND"))
}

func TestUploadCreatesParentAndDownload(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)
	ctx := t.Context()

	content := []byte(`{"tokens":[1,2,3]}`)
	require.NoError(t, c.UploadFile(ctx, "/app/data.json", content))
	assert.Equal(t, content, srv.ReadFile(t, "/app/data.json"))
	assert.Equal(t, 1, srv.Count("MKCOL"))

	// parent exists now, the MKCOL answers 405 and the upload still succeeds
	require.NoError(t, c.UploadFile(ctx, "/app/data.json", []byte("{}")))
	assert.Equal(t, 2, srv.Count("MKCOL"))

	got, err := c.DownloadFile(ctx, "app/data.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), got)

	stats := c.Stats()
	assert.Positive(t, stats.Requests)
	assert.Positive(t, stats.BytesSentTotal)
	assert.Positive(t, stats.BytesRecvTotal)
}

func TestUploadCreatesNestedCollections(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)

	require.NoError(t, c.UploadFile(t.Context(), "/a/b/c/data.json", []byte("x")))
	assert.True(t, srv.Exists("/a/b/c"))
	assert.Equal(t, []byte("x"), srv.ReadFile(t, "/a/b/c/data.json"))
}

func TestUploadTopLevelSkipsMkcol(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)

	require.NoError(t, c.UploadFile(t.Context(), "/data.json", []byte("x")))
	assert.Zero(t, srv.Count("MKCOL"))
}

func TestUploadIfMatch(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.WriteFile(t, "/app/data.json", []byte("v1"))
	c := newTestClient(t, srv)
	ctx := t.Context()

	info, err := c.GetFileInfo(ctx, "/app/data.json")
	require.NoError(t, err)
	require.NotNil(t, info)

	require.NoError(t, c.UploadFile(ctx, "/app/data.json", []byte("v2"), WithIfMatch(info.ETag)))

	// stale tag
	err = c.UploadFile(ctx, "/app/data.json", []byte("v3"), WithIfMatch(info.ETag))
	assert.ErrorIs(t, err, daverr.ErrPreconditionFailed)
	assert.Equal(t, []byte("v2"), srv.ReadFile(t, "/app/data.json"))
}

func TestGetFileInfo(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.WriteFile(t, "/app/data.json", []byte("hello"))
	c := newTestClient(t, srv)

	info, err := c.GetFileInfo(t.Context(), "/app/data.json")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "data.json", info.Name)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDirectory)
	assert.NotEmpty(t, info.ETag)
	assert.WithinDuration(t, srv.ModTime(t, "/app/data.json"), info.LastModified, 1e9)

	missing, err := c.GetFileInfo(t.Context(), "/app/nope.json")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetFileInfoRetriesServerErrors(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.WriteFile(t, "/data.json", []byte("hello"))
	srv.FailNext("PROPFIND", http.StatusServiceUnavailable, 2)
	c := newTestClient(t, srv)

	info, err := c.GetFileInfo(t.Context(), "/data.json")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 3, srv.Count("PROPFIND"))
}

func TestFileExists(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.WriteFile(t, "/data.json", []byte("x"))
	c := newTestClient(t, srv)

	ok, err := c.FileExists(t.Context(), "/data.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.FileExists(t.Context(), "/other.json")
	require.NoError(t, err)
	assert.False(t, ok)

	srv.FailNext(http.MethodHead, http.StatusForbidden, 1)
	_, err = c.FileExists(t.Context(), "/data.json")
	assert.ErrorIs(t, err, daverr.ErrPermissionDenied)
}

func TestDeleteFileIsNotRetried(t *testing.T) {
	srv := davtest.NewServer(t)
	srv.WriteFile(t, "/data.json", []byte("x"))
	c := newTestClient(t, srv)

	srv.FailNext(http.MethodDelete, http.StatusBadGateway, 1)
	err := c.DeleteFile(t.Context(), "/data.json")
	assert.ErrorIs(t, err, daverr.ErrServer)
	assert.Equal(t, 1, srv.Count(http.MethodDelete))
	assert.True(t, srv.Exists("/data.json"))

	require.NoError(t, c.DeleteFile(t.Context(), "/data.json"))
	assert.False(t, srv.Exists("/data.json"))

	err = c.DeleteFile(t.Context(), "/data.json")
	assert.ErrorIs(t, err, daverr.ErrNotFound)
}

func TestCreateDirectoryIdempotent(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)

	require.NoError(t, c.CreateDirectory(t.Context(), "/backups"))
	require.NoError(t, c.CreateDirectory(t.Context(), "/backups"))
	assert.True(t, srv.Exists("/backups"))
}

func TestDownloadStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		target *daverr.Error
		calls  int
	}{
		{http.StatusUnauthorized, daverr.ErrAuthentication, 1},
		{http.StatusForbidden, daverr.ErrPermissionDenied, 1},
		{http.StatusNotFound, daverr.ErrNotFound, 1},
		{http.StatusTooManyRequests, daverr.ErrRateLimited, 5},
		{http.StatusInternalServerError, daverr.ErrServer, 5},
		{http.StatusNotImplemented, daverr.ErrServer, 1},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			calls := 0
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			cfg := NewConfig(ts.URL, "u", "p")
			c, err := New(cfg, WithExecutor(retry.New(retry.Network(), retry.WithSleep(noSleep))))
			require.NoError(t, err)

			_, err = c.DownloadFile(t.Context(), "/x.json")
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.calls, calls)
		})
	}
}

func TestTransportErrorClassified(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(NewConfig(url, "u", "p"), WithExecutor(retry.New(retry.Fast(), retry.WithSleep(noSleep))))
	require.NoError(t, err)

	err = c.TestConnection(t.Context())
	require.Error(t, err)
	assert.True(t, daverr.IsRetryable(err))
}

func TestCancelledContext(t *testing.T) {
	srv := davtest.NewServer(t)
	c := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := c.DownloadFile(ctx, "/data.json")
	assert.ErrorIs(t, err, daverr.ErrCancelled)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, daverr.ErrInvalidConfig)
}
