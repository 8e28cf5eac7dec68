package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

// Sync inspects both replicas, performs the decided action and records the
// outcome on success. A conflict is reported with Success false and leaves
// both replicas untouched.
func (c *CloudSync) Sync(ctx context.Context) (*SyncResult, error) {
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

	action := DetermineSyncAction(local, remote, c.status)
	slog.Debug("sync", "op", "decide", "path", c.remotePath, "action", action)

	res, err := c.execute(ctx, action, local, remote)
	if err != nil {
		return nil, err
	}

	// identical bytes under diverging metadata are not a conflict
	if res.Action == ConflictDetected && res.LocalChecksum != "" && res.LocalChecksum == res.RemoteChecksum {
		res.Action = NoActionNeeded
		res.Success = true
		res.Message = "local and remote content are identical"
		res.ConflictDetails = ""
		action = NoActionNeeded
	}

	if res.Success {
		c.recordSuccess(ctx, action, res, remote)
	}
	return res, nil
}

// ExecuteSyncAction performs action against the given metadata. It does not
// update the sync status; Sync is the usual entry point.
func (c *CloudSync) ExecuteSyncAction(ctx context.Context, action SyncAction, local *LocalFileInfo, remote *dav.RemoteFileInfo) (*SyncResult, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.execute(ctx, action, local, remote)
}

func (c *CloudSync) execute(ctx context.Context, action SyncAction, local *LocalFileInfo, remote *dav.RemoteFileInfo) (*SyncResult, error) {
	switch action {
	case NoActionNeeded:
		return &SyncResult{
			Action:  NoActionNeeded,
			Success: true,
			Message: "local and remote are in sync",
		}, nil
	case UploadToRemote:
		var opts []dav.UploadOption
		if c.conditional && remote != nil && remote.ETag != "" {
			opts = append(opts, dav.WithIfMatch(remote.ETag))
		}
		res, err := c.upload(ctx, opts...)
		if errors.Is(err, daverr.ErrPreconditionFailed) {
			logWarn("upload", c.remotePath, err)
			return &SyncResult{
				Action:          ConflictDetected,
				Success:         false,
				Message:         "remote file changed during sync",
				ConflictDetails: daverr.FriendlyMessage(err),
			}, nil
		}
		return res, err
	case DownloadFromRemote:
		return c.download(ctx)
	case ConflictDetected:
		return c.conflictResult(ctx, local, remote), nil
	default:
		return nil, daverr.InvalidConfigf("unknown sync action %d", int(action))
	}
}

func (c *CloudSync) upload(ctx context.Context, opts ...dav.UploadOption) (*SyncResult, error) {
	data, err := c.readLocal()
	if err != nil {
		return nil, err
	}
	if err := c.remote.UploadFile(ctx, c.remotePath, data, opts...); err != nil {
		return nil, err
	}

	sum := utils.SHA256Hex(data)
	slog.Info("sync", "op", "upload", "path", c.remotePath, "size", humanize.Bytes(uint64(len(data))))
	return &SyncResult{
		Action:           UploadToRemote,
		Success:          true,
		Message:          "uploaded local file to remote",
		BytesTransferred: int64(len(data)),
		LocalChecksum:    sum,
		RemoteChecksum:   sum,
	}, nil
}

func (c *CloudSync) download(ctx context.Context) (*SyncResult, error) {
	data, err := c.remote.DownloadFile(ctx, c.remotePath)
	if err != nil {
		return nil, err
	}
	if err := c.writeLocal(data); err != nil {
		return nil, err
	}

	sum := utils.SHA256Hex(data)
	slog.Info("sync", "op", "download", "path", c.remotePath, "size", humanize.Bytes(uint64(len(data))))
	return &SyncResult{
		Action:           DownloadFromRemote,
		Success:          true,
		Message:          "downloaded remote file to local",
		BytesTransferred: int64(len(data)),
		LocalChecksum:    sum,
		RemoteChecksum:   sum,
	}, nil
}

// conflictResult hashes both sides where possible; failures leave the checksum empty.
func (c *CloudSync) conflictResult(ctx context.Context, local *LocalFileInfo, remote *dav.RemoteFileInfo) *SyncResult {
	var localSum, remoteSum string
	var g errgroup.Group
	g.Go(func() error {
		if sum, err := utils.FileSHA256(c.localPath); err == nil {
			localSum = sum
		} else {
			logWarn("conflict", c.localPath, err)
		}
		return nil
	})
	g.Go(func() error {
		if data, err := c.remote.DownloadFile(ctx, c.remotePath); err == nil {
			remoteSum = utils.SHA256Hex(data)
		} else {
			logWarn("conflict", c.remotePath, err)
		}
		return nil
	})
	_ = g.Wait()

	slog.Warn("sync", "op", "conflict", "path", c.remotePath, "local", localSum, "remote", remoteSum)
	return &SyncResult{
		Action:          ConflictDetected,
		Success:         false,
		Message:         "local and remote files both changed",
		LocalChecksum:   localSum,
		RemoteChecksum:  remoteSum,
		ConflictDetails: describeConflict(local, remote),
	}
}

func describeConflict(local *LocalFileInfo, remote *dav.RemoteFileInfo) string {
	if local == nil || remote == nil {
		return ""
	}
	return fmt.Sprintf("local: %s modified %s, remote: %s modified %s",
		humanize.Bytes(uint64(local.Size)), local.LastModified.UTC().Format(timeLayout),
		humanize.Bytes(uint64(remote.Size)), remote.LastModified.UTC().Format(timeLayout))
}

const timeLayout = "2006-01-02 15:04:05 MST"

// ForceUpload replaces the remote file with the local one, ignoring timestamps.
func (c *CloudSync) ForceUpload(ctx context.Context) (*SyncResult, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.forceUpload(ctx)
}

func (c *CloudSync) forceUpload(ctx context.Context) (*SyncResult, error) {
	local, err := c.localInfo()
	if err != nil {
		return nil, err
	}
	if local == nil {
		return &SyncResult{
			Action:  NoActionNeeded,
			Success: false,
			Message: "local file does not exist: " + c.localPath,
		}, nil
	}

	res, err := c.upload(ctx)
	if err != nil {
		return nil, err
	}
	c.recordSuccess(ctx, UploadToRemote, res, nil)
	return res, nil
}

// ForceDownload replaces the local file with the remote one, ignoring timestamps.
func (c *CloudSync) ForceDownload(ctx context.Context) (*SyncResult, error) {
	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return c.forceDownload(ctx)
}

func (c *CloudSync) forceDownload(ctx context.Context) (*SyncResult, error) {
	remote, err := c.remoteInfo(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return &SyncResult{
			Action:  NoActionNeeded,
			Success: false,
			Message: "remote file does not exist: " + c.remotePath,
		}, nil
	}

	res, err := c.download(ctx)
	if err != nil {
		return nil, err
	}
	c.recordSuccess(ctx, DownloadFromRemote, res, remote)
	return res, nil
}

// recordSuccess updates the status after a successful action. remote is the
// metadata observed before the action; after an upload it is fetched again.
func (c *CloudSync) recordSuccess(ctx context.Context, action SyncAction, res *SyncResult, remote *dav.RemoteFileInfo) {
	switch action {
	case UploadToRemote:
		info, err := c.remote.GetFileInfo(ctx, c.remotePath)
		if err != nil {
			logWarn("status", c.remotePath, err)
		}
		remote = info
		c.alignModTime(remote)
	case DownloadFromRemote:
		c.alignModTime(remote)
	}

	s := &c.status
	s.LastSync = c.now()
	s.SyncCount++
	s.LastSyncSize = res.BytesTransferred
	if local, err := c.localInfo(); err == nil && local != nil {
		s.LastLocalModified = local.LastModified
	}
	if remote != nil {
		s.LastRemoteModified = remote.LastModified
		s.RemoteETag = remote.ETag
		s.LocalETag = remote.ETag
	}
	if res.LocalChecksum != "" {
		s.LocalChecksum = res.LocalChecksum
	}
	if res.RemoteChecksum != "" {
		s.RemoteChecksum = res.RemoteChecksum
	}
}

func ensureFreeSpace(dir string, need int64) error {
	free, err := utils.FreeSpace(dir)
	if err != nil {
		// unknown free space is not a reason to refuse the write
		slog.Debug("sync", "op", "disk", "dir", dir, "error", err)
		return nil
	}
	if free < uint64(need) {
		return daverr.Newf(daverr.KindInsufficientSpace, "need %s in %s, %s free",
			humanize.Bytes(uint64(need)), dir, humanize.Bytes(free))
	}
	return nil
}

func logWarn(op, path string, err error) {
	slog.Warn("sync", "op", op, "path", path, "error", err)
}
