package cloudsync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

const backupTimeLayout = "20060102_150405"

// GetConflictInfo returns details for both replicas when they are in conflict
// by CompareFilesDetailed, and nil otherwise.
func (c *CloudSync) GetConflictInfo(ctx context.Context) (*ConflictInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.localInfo()
	if err != nil {
		return nil, err
	}
	remote, err := c.remoteInfo(ctx)
	if err != nil {
		return nil, err
	}
	if local == nil || remote == nil {
		return nil, nil
	}

	action, remoteData, err := c.compareDetailed(ctx, local, remote)
	if err != nil {
		return nil, err
	}
	if action != ConflictDetected {
		return nil, nil
	}

	info := &ConflictInfo{
		LocalSize:      local.Size,
		RemoteSize:     remote.Size,
		LocalModified:  local.LastModified,
		RemoteModified: remote.LastModified,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := utils.FileSHA256(c.localPath)
		if err != nil {
			return daverr.FromIO(err)
		}
		info.LocalChecksum = sum
		return nil
	})
	g.Go(func() error {
		if remoteData == nil {
			data, err := c.remote.DownloadFile(gctx, c.remotePath)
			if err != nil {
				return err
			}
			remoteData = data
		}
		info.RemoteChecksum = utils.SHA256Hex(remoteData)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

// ResolveConflict applies r to the replicas. Merge is not supported and fails
// before anything is touched.
func (c *CloudSync) ResolveConflict(ctx context.Context, r ConflictResolution) (*SyncResult, error) {
	if r == Merge {
		return nil, daverr.InvalidConfigf("merge resolution is not supported")
	}

	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	local, err := c.localInfo()
	if err != nil {
		return nil, err
	}
	remote, err := c.remoteInfo(ctx)
	if err != nil {
		return nil, err
	}
	if local == nil || remote == nil {
		return nil, daverr.InvalidConfigf("nothing to resolve: both local and remote files must exist")
	}

	slog.Info("sync", "op", "resolve", "path", c.remotePath, "resolution", r)
	switch r {
	case KeepLocal:
		return c.forceUpload(ctx)
	case KeepRemote:
		return c.forceDownload(ctx)
	case KeepBoth:
		return c.keepBoth(ctx, local, remote)
	default:
		return nil, daverr.InvalidConfigf("unknown conflict resolution %d", int(r))
	}
}

// keepBoth saves the local version under a timestamped name on both sides
// and then makes the remote version the local one.
func (c *CloudSync) keepBoth(ctx context.Context, local *LocalFileInfo, remote *dav.RemoteFileInfo) (*SyncResult, error) {
	stamp := c.now().Format(backupTimeLayout)
	localBackup := BackupPath(c.localPath, stamp)
	remoteBackup := c.remotePath + ".local_" + stamp

	if err := utils.CopyFile(c.localPath, localBackup); err != nil {
		return nil, daverr.FromIO(err)
	}
	backup, err := os.ReadFile(localBackup)
	if err != nil {
		return nil, daverr.FromIO(err)
	}

	remoteData, err := c.remote.DownloadFile(ctx, c.remotePath)
	if err != nil {
		return nil, err
	}
	if err := c.writeLocal(remoteData); err != nil {
		return nil, err
	}
	if err := c.remote.UploadFile(ctx, remoteBackup, backup); err != nil {
		return nil, err
	}

	backupSum := utils.SHA256Hex(backup)
	remoteSum := utils.SHA256Hex(remoteData)
	res := &SyncResult{
		Action:           NoActionNeeded,
		Success:          true,
		Message:          fmt.Sprintf("kept both versions: local copy saved as %s and %s", filepath.Base(localBackup), remoteBackup),
		BytesTransferred: int64(len(remoteData) + len(backup)),
		LocalChecksum:    remoteSum,
		RemoteChecksum:   remoteSum,
		ConflictDetails: fmt.Sprintf("local version %s (sha256 %s), remote version %s (sha256 %s)",
			local.LastModified.UTC().Format(timeLayout), backupSum,
			remote.LastModified.UTC().Format(timeLayout), remoteSum),
		LocalBackupPath:  localBackup,
		RemoteBackupPath: remoteBackup,
	}
	c.recordSuccess(ctx, DownloadFromRemote, res, remote)
	return res, nil
}

// BackupPath names the local backup for stamp: data.json becomes data_local_<stamp>.json.
func BackupPath(localPath, stamp string) string {
	stem, ext := utils.SplitExt(localPath)
	return filepath.Join(filepath.Dir(localPath), stem+"_local_"+stamp+ext)
}
