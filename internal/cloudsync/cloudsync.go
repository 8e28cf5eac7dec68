// Package cloudsync keeps one local file and one WebDAV resource in step.
package cloudsync

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

// Remote is the subset of *dav.Client that CloudSync drives.
type Remote interface {
	TestConnection(ctx context.Context) error
	GetFileInfo(ctx context.Context, remotePath string) (*dav.RemoteFileInfo, error)
	DownloadFile(ctx context.Context, remotePath string) ([]byte, error)
	UploadFile(ctx context.Context, remotePath string, content []byte, opts ...dav.UploadOption) error
}

var _ Remote = (*dav.Client)(nil)

// CloudSync synchronises localPath with remotePath. Operations on one instance
// run one at a time; the lock file extends that across processes.
type CloudSync struct {
	remote     Remote
	client     *dav.Client // nil when built with NewWithRemote
	remotePath string
	localPath  string

	mu     sync.Mutex
	status SyncStatus

	now         func() time.Time
	flock       *flock.Flock
	checkSpace  bool
	conditional bool
}

type options struct {
	now         func() time.Time
	status      *SyncStatus
	lockFile    bool
	checkSpace  bool
	conditional bool
	clientOpts  []dav.Option
}

type Option func(*options)

// WithClock replaces time.Now for status timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStatus seeds the instance with a status persisted by an earlier run.
func WithStatus(s SyncStatus) Option {
	return func(o *options) { o.status = &s }
}

// WithLockFile toggles the cross-process lock next to the local file.
func WithLockFile(enabled bool) Option {
	return func(o *options) { o.lockFile = enabled }
}

// WithDiskSpaceCheck toggles the free space check before local writes.
func WithDiskSpaceCheck(enabled bool) Option {
	return func(o *options) { o.checkSpace = enabled }
}

// WithConditionalUpload toggles If-Match on uploads made by Sync.
func WithConditionalUpload(enabled bool) Option {
	return func(o *options) { o.conditional = enabled }
}

// WithClientOptions is passed to dav.New by New.
func WithClientOptions(opts ...dav.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// New validates cfg and builds a CloudSync over a fresh dav.Client.
// The remote resource is cfg.RemotePath.
func New(cfg dav.Config, localPath string, opts ...Option) (*CloudSync, error) {
	o := buildOptions(opts)
	client, err := dav.New(cfg, o.clientOpts...)
	if err != nil {
		return nil, err
	}
	cs, err := newCloudSync(client, cfg.RemotePath, localPath, o)
	if err != nil {
		client.Close()
		return nil, err
	}
	cs.client = client
	return cs, nil
}

// NewWithRemote builds a CloudSync over any Remote.
func NewWithRemote(remote Remote, remotePath, localPath string, opts ...Option) (*CloudSync, error) {
	return newCloudSync(remote, remotePath, localPath, buildOptions(opts))
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		lockFile:    true,
		checkSpace:  true,
		conditional: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newCloudSync(remote Remote, remotePath, localPath string, o options) (*CloudSync, error) {
	if remote == nil {
		return nil, daverr.InvalidConfigf("remote is required")
	}
	if remotePath == "" {
		return nil, daverr.InvalidConfigf("remote path is required")
	}
	if localPath == "" {
		return nil, daverr.InvalidConfigf("local path is required")
	}

	resolved, err := utils.ResolvePath(localPath)
	if err != nil {
		return nil, daverr.InvalidConfigf("local path %q: %v", localPath, err)
	}

	cs := &CloudSync{
		remote:      remote,
		remotePath:  remotePath,
		localPath:   resolved,
		now:         o.now,
		checkSpace:  o.checkSpace,
		conditional: o.conditional,
	}
	if o.status != nil {
		cs.status = *o.status
	}
	if o.lockFile {
		cs.flock = flock.New(LockPath(resolved))
	}
	return cs, nil
}

// LockPath is the lock file guarding localPath.
func LockPath(localPath string) string {
	return filepath.Join(filepath.Dir(localPath), "."+filepath.Base(localPath)+".davsync.lock")
}

func (c *CloudSync) LocalPath() string  { return c.localPath }
func (c *CloudSync) RemotePath() string { return c.remotePath }

// Client returns the dav.Client built by New, or nil.
func (c *CloudSync) Client() *dav.Client { return c.client }

// Status returns a copy of the current sync status.
func (c *CloudSync) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close releases idle connections of a client created by New.
func (c *CloudSync) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// TestConnection checks that the server accepts the credentials.
func (c *CloudSync) TestConnection(ctx context.Context) error {
	return c.remote.TestConnection(ctx)
}

// acquire serialises mutating operations within and across processes.
func (c *CloudSync) acquire() (func(), error) {
	c.mu.Lock()
	if c.flock == nil {
		return c.mu.Unlock, nil
	}

	if err := utils.EnsureParent(c.flock.Path()); err != nil {
		c.mu.Unlock()
		return nil, daverr.FromIO(err)
	}
	locked, err := c.flock.TryLock()
	if err != nil {
		c.mu.Unlock()
		return nil, daverr.FromIO(err)
	}
	if !locked {
		c.mu.Unlock()
		return nil, daverr.Newf(daverr.KindFileLocked, "another sync is running on %s", c.localPath)
	}

	return func() {
		_ = c.flock.Unlock()
		c.mu.Unlock()
	}, nil
}

// localInfo returns nil when the local file does not exist.
func (c *CloudSync) localInfo() (*LocalFileInfo, error) {
	fi, err := os.Stat(c.localPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, daverr.FromIO(err)
	}
	if fi.IsDir() {
		return nil, daverr.InvalidConfigf("local path %s is a directory", c.localPath)
	}
	return &LocalFileInfo{Size: fi.Size(), LastModified: fi.ModTime()}, nil
}

func (c *CloudSync) remoteInfo(ctx context.Context) (*dav.RemoteFileInfo, error) {
	info, err := c.remote.GetFileInfo(ctx, c.remotePath)
	if err != nil {
		return nil, err
	}
	if info != nil && info.IsDirectory {
		return nil, daverr.InvalidConfigf("remote path %s is a collection", c.remotePath)
	}
	return info, nil
}

func (c *CloudSync) readLocal() ([]byte, error) {
	data, err := os.ReadFile(c.localPath)
	if err != nil {
		return nil, daverr.FromIO(err)
	}
	return data, nil
}

// writeLocal replaces the local file atomically, keeping its mode when it exists.
func (c *CloudSync) writeLocal(data []byte) error {
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(c.localPath); err == nil {
		perm = fi.Mode().Perm()
	}

	if err := utils.EnsureParent(c.localPath); err != nil {
		return daverr.FromIO(err)
	}
	if c.checkSpace {
		if err := ensureFreeSpace(filepath.Dir(c.localPath), int64(len(data))); err != nil {
			return err
		}
	}
	if err := utils.WriteFileAtomic(c.localPath, data, perm); err != nil {
		return daverr.FromIO(err)
	}
	return nil
}

// alignModTime stamps the local file with the remote time so that equal
// content also compares equal by timestamp.
func (c *CloudSync) alignModTime(remote *dav.RemoteFileInfo) {
	if remote == nil || remote.LastModified.IsZero() {
		return
	}
	if err := os.Chtimes(c.localPath, remote.LastModified, remote.LastModified); err != nil {
		logWarn("align", c.localPath, err)
	}
}
