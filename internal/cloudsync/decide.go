package cloudsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

// ModTimeTolerance is the slack for comparing timestamps from different clocks and filesystems.
const ModTimeTolerance = 2 * time.Second

// secondOf drops the sub-second part a local filesystem keeps but an HTTP date cannot.
func secondOf(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// DetermineSyncAction decides what to do from metadata alone.
//
// A missing side is always populated from the other. Otherwise the newer side
// wins. With equal timestamps an etag that moved since status was recorded, or
// a size difference, is a conflict.
func DetermineSyncAction(local *LocalFileInfo, remote *dav.RemoteFileInfo, status SyncStatus) SyncAction {
	switch {
	case local == nil && remote == nil:
		return NoActionNeeded
	case remote == nil:
		return UploadToRemote
	case local == nil:
		return DownloadFromRemote
	}

	lt, rt := local.LastModified, remote.LastModified
	if lt.After(rt) {
		return UploadToRemote
	}
	if rt.After(lt) {
		return DownloadFromRemote
	}

	if remote.ETag != "" && status.LocalETag != "" &&
		dav.NormalizedETag(remote.ETag) != dav.NormalizedETag(status.LocalETag) {
		return ConflictDetected
	}
	if local.Size != remote.Size {
		return ConflictDetected
	}
	return NoActionNeeded
}

// CompareFilesDetailed is a stricter DetermineSyncAction for conflict inspection.
// Timestamps within ModTimeTolerance count as equal; equal sized files are then
// compared by SHA-256 so clock skew with identical content is not a conflict.
func (c *CloudSync) CompareFilesDetailed(ctx context.Context, local *LocalFileInfo, remote *dav.RemoteFileInfo) (SyncAction, error) {
	action, _, err := c.compareDetailed(ctx, local, remote)
	return action, err
}

// compareDetailed also returns the remote content when it had to be downloaded.
func (c *CloudSync) compareDetailed(ctx context.Context, local *LocalFileInfo, remote *dav.RemoteFileInfo) (SyncAction, []byte, error) {
	switch {
	case local == nil && remote == nil:
		return NoActionNeeded, nil, nil
	case remote == nil:
		return UploadToRemote, nil, nil
	case local == nil:
		return DownloadFromRemote, nil, nil
	}

	newer := DownloadFromRemote
	if local.LastModified.After(remote.LastModified) {
		newer = UploadToRemote
	}

	diff := secondOf(local.LastModified).Sub(secondOf(remote.LastModified)).Abs()
	if diff > ModTimeTolerance || local.Size != remote.Size {
		return newer, nil, nil
	}

	localSum, err := utils.FileSHA256(c.localPath)
	if err != nil {
		return 0, nil, daverr.FromIO(err)
	}

	content, err := c.remote.DownloadFile(ctx, c.remotePath)
	if err != nil {
		if errors.Is(err, daverr.ErrCancelled) {
			return 0, nil, err
		}
		// the remote cannot be read back, so the local copy is authoritative
		slog.Warn("sync", "op", "compare", "path", c.remotePath, "error", err)
		return UploadToRemote, nil, nil
	}

	if utils.SHA256Hex(content) == localSum {
		return NoActionNeeded, content, nil
	}
	return ConflictDetected, content, nil
}
