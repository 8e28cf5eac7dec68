package cloudsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davsync/davsync/internal/dav"
)

var base = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestDetermineSyncActionMissingSides(t *testing.T) {
	local := &LocalFileInfo{Size: 10, LastModified: base}
	remote := &dav.RemoteFileInfo{Size: 10, LastModified: base}

	assert.Equal(t, NoActionNeeded, DetermineSyncAction(nil, nil, SyncStatus{}))
	assert.Equal(t, UploadToRemote, DetermineSyncAction(local, nil, SyncStatus{}))
	assert.Equal(t, DownloadFromRemote, DetermineSyncAction(nil, remote, SyncStatus{}))
}

func TestDetermineSyncActionNewerWins(t *testing.T) {
	tests := []struct {
		name   string
		local  time.Time
		remote time.Time
		want   SyncAction
	}{
		{"local newer", base.Add(time.Minute), base, UploadToRemote},
		{"remote newer", base, base.Add(time.Minute), DownloadFromRemote},
		{"one second apart", base.Add(time.Second), base, UploadToRemote},
		{"sub-second local newer", base.Add(400 * time.Millisecond), base, UploadToRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// sizes differ on purpose: timestamps decide first
			local := &LocalFileInfo{Size: 10, LastModified: tt.local}
			remote := &dav.RemoteFileInfo{Size: 10, LastModified: tt.remote}
			if tt.want != NoActionNeeded {
				remote.Size = 99
			}
			assert.Equal(t, tt.want, DetermineSyncAction(local, remote, SyncStatus{}))
		})
	}
}

func TestDetermineSyncActionEqualTimestamps(t *testing.T) {
	local := &LocalFileInfo{Size: 10, LastModified: base}

	t.Run("same size without etag history", func(t *testing.T) {
		remote := &dav.RemoteFileInfo{Size: 10, LastModified: base, ETag: `"abc"`}
		assert.Equal(t, NoActionNeeded, DetermineSyncAction(local, remote, SyncStatus{}))
	})

	t.Run("size differs", func(t *testing.T) {
		remote := &dav.RemoteFileInfo{Size: 11, LastModified: base}
		assert.Equal(t, ConflictDetected, DetermineSyncAction(local, remote, SyncStatus{}))
	})

	t.Run("etag moved", func(t *testing.T) {
		remote := &dav.RemoteFileInfo{Size: 10, LastModified: base, ETag: `"new"`}
		status := SyncStatus{LocalETag: `"old"`}
		assert.Equal(t, ConflictDetected, DetermineSyncAction(local, remote, status))
	})

	t.Run("weak and strong forms of one etag match", func(t *testing.T) {
		remote := &dav.RemoteFileInfo{Size: 10, LastModified: base, ETag: `W/"abc"`}
		status := SyncStatus{LocalETag: `"abc"`}
		assert.Equal(t, NoActionNeeded, DetermineSyncAction(local, remote, status))
	})

	t.Run("remote without etag falls back to size", func(t *testing.T) {
		remote := &dav.RemoteFileInfo{Size: 10, LastModified: base}
		status := SyncStatus{LocalETag: `"old"`}
		assert.Equal(t, NoActionNeeded, DetermineSyncAction(local, remote, status))
	})
}

func TestSyncActionText(t *testing.T) {
	for _, a := range []SyncAction{NoActionNeeded, UploadToRemote, DownloadFromRemote, ConflictDetected} {
		text, err := a.MarshalText()
		require.NoError(t, err)

		var got SyncAction
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, a, got)
	}

	var a SyncAction
	assert.Error(t, a.UnmarshalText([]byte("sideways")))
	assert.Equal(t, "sync_action(42)", SyncAction(42).String())
}

func TestParseConflictResolution(t *testing.T) {
	tests := map[string]ConflictResolution{
		"keep-local":  KeepLocal,
		"keep_remote": KeepRemote,
		"KeepBoth":    KeepBoth,
		"merge":       Merge,
	}
	for in, want := range tests {
		got, err := ParseConflictResolution(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseConflictResolution("keep-neither")
	assert.Error(t, err)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/data/tokens_local_20250314_092653.json", BackupPath("/data/tokens.json", "20250314_092653"))
	assert.Equal(t, "/data/notes_local_x", BackupPath("/data/notes", "x"))
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/data/.tokens.json.davsync.lock", LockPath("/data/tokens.json"))
}
