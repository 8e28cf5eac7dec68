package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davsync/davsync/internal/cloudsync"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/db"
)

var t0 = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.Context(), db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := openJournal(t)

	res := &cloudsync.SyncResult{
		Action:           cloudsync.UploadToRemote,
		Success:          true,
		Message:          "uploaded",
		BytesTransferred: 42,
		LocalChecksum:    "abc",
		RemoteChecksum:   "abc",
	}
	id1, err := j.Record(t.Context(), NewRun("p", "sync", t0, t0.Add(time.Second), res, nil))
	require.NoError(t, err)

	failure := daverr.New(daverr.KindAuthentication, "bad credentials")
	id2, err := j.Record(t.Context(), NewRun("p", "push", t0.Add(time.Minute), t0.Add(time.Minute), nil, failure))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	_, err = j.Record(t.Context(), NewRun("other", "sync", t0, t0, res, nil))
	require.NoError(t, err)

	runs, err := j.Recent(t.Context(), "p", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "push", runs[0].Operation)
	assert.Equal(t, "error", runs[0].Action)
	assert.False(t, runs[0].Success)
	assert.Equal(t, daverr.CodeAuthentication, runs[0].ErrorCode)
	assert.NotEmpty(t, runs[0].Message)

	assert.Equal(t, "upload_to_remote", runs[1].Action)
	assert.True(t, runs[1].Success)
	assert.EqualValues(t, 42, runs[1].Bytes)
	assert.Equal(t, "abc", runs[1].LocalChecksum)
	assert.True(t, runs[1].StartedAt.Equal(t0))
	assert.Equal(t, time.Second, runs[1].Duration())
}

func TestRecentLimit(t *testing.T) {
	j := openJournal(t)
	for i := range 5 {
		_, err := j.Record(t.Context(), Run{Profile: "p", Operation: "sync", Action: "no_action_needed", Success: true,
			StartedAt: t0.Add(time.Duration(i) * time.Minute), FinishedAt: t0})
		require.NoError(t, err)
	}

	runs, err := j.Recent(t.Context(), "p", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.Equal(t0.Add(4*time.Minute)))

	removed, err := j.Prune(t.Context(), "p", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	runs, err = j.Recent(t.Context(), "p", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStatusRoundTrip(t *testing.T) {
	j := openJournal(t)

	_, ok, err := j.LoadStatus(t.Context(), "p")
	require.NoError(t, err)
	assert.False(t, ok)

	status := cloudsync.SyncStatus{
		LastSync:           t0,
		LastLocalModified:  t0.Add(-time.Minute),
		LastRemoteModified: t0.Add(-time.Minute),
		LocalETag:          `"e1"`,
		RemoteETag:         `"e1"`,
		LocalChecksum:      "aa",
		RemoteChecksum:     "aa",
		SyncCount:          3,
		LastSyncSize:       512,
	}
	require.NoError(t, j.SaveStatus(t.Context(), "p", status))

	status.SyncCount = 4
	require.NoError(t, j.SaveStatus(t.Context(), "p", status))

	got, ok, err := j.LoadStatus(t.Context(), "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 4, got.SyncCount)
	assert.Equal(t, `"e1"`, got.LocalETag)
	assert.EqualValues(t, 512, got.LastSyncSize)
	assert.True(t, got.LastSync.Equal(t0))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")

	j, err := Open(t.Context(), path)
	require.NoError(t, err)
	require.NoError(t, j.SaveStatus(t.Context(), "p", cloudsync.SyncStatus{SyncCount: 9}))
	require.NoError(t, j.Close())

	j, err = Open(t.Context(), path)
	require.NoError(t, err)
	defer j.Close()

	got, ok, err := j.LoadStatus(t.Context(), "p")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 9, got.SyncCount)
}
