package dav

import (
	"context"
	"testing"
	"time"

	"github.com/davsync/davsync/internal/davtest"
	"github.com/davsync/davsync/internal/retry"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, srv *davtest.Server) *Client {
	t.Helper()
	cfg := NewConfig(srv.URL, davtest.Username, davtest.Password)
	cfg.RemotePath = "/sync/data.json"
	c, err := New(cfg, WithExecutor(retry.New(retry.Default(), retry.WithSleep(noSleep))))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}
