package cloudsync

import (
	"fmt"
	"strings"
	"time"
)

// SyncAction is the outcome of comparing the two replicas.
type SyncAction int

const (
	NoActionNeeded SyncAction = iota
	UploadToRemote
	DownloadFromRemote
	ConflictDetected
)

var actionNames = map[SyncAction]string{
	NoActionNeeded:     "no_action_needed",
	UploadToRemote:     "upload_to_remote",
	DownloadFromRemote: "download_from_remote",
	ConflictDetected:   "conflict_detected",
}

func (a SyncAction) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("sync_action(%d)", int(a))
}

func (a SyncAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *SyncAction) UnmarshalText(text []byte) error {
	for k, v := range actionNames {
		if v == string(text) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("cloudsync: unknown sync action %q", text)
}

// ConflictResolution is the caller's choice for a detected conflict.
type ConflictResolution int

const (
	KeepLocal ConflictResolution = iota
	KeepRemote
	KeepBoth
	// Merge is recognised but not supported.
	Merge
)

var resolutionNames = map[ConflictResolution]string{
	KeepLocal:  "keep-local",
	KeepRemote: "keep-remote",
	KeepBoth:   "keep-both",
	Merge:      "merge",
}

func (r ConflictResolution) String() string {
	if s, ok := resolutionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("conflict_resolution(%d)", int(r))
}

// ParseConflictResolution accepts keep-local, keep_local, KeepLocal and so on.
func ParseConflictResolution(s string) (ConflictResolution, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	for k, v := range resolutionNames {
		if strings.ReplaceAll(v, "-", "") == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("cloudsync: unknown conflict resolution %q", s)
}

// LocalFileInfo is the observable state of the local replica.
type LocalFileInfo struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// SyncStatus tracks the last successful sync of one CloudSync instance.
type SyncStatus struct {
	LastSync           time.Time `json:"last_sync"`
	LastLocalModified  time.Time `json:"last_local_modified"`
	LastRemoteModified time.Time `json:"last_remote_modified"`
	// LocalETag is the remote etag the local replica last matched.
	LocalETag      string `json:"local_etag,omitempty"`
	RemoteETag     string `json:"remote_etag,omitempty"`
	LocalChecksum  string `json:"local_checksum,omitempty"`
	RemoteChecksum string `json:"remote_checksum,omitempty"`
	SyncCount      uint64 `json:"sync_count"`
	LastSyncSize   int64  `json:"last_sync_size"`
}

// ConflictInfo describes both replicas for manual resolution.
type ConflictInfo struct {
	LocalSize      int64     `json:"local_size"`
	RemoteSize     int64     `json:"remote_size"`
	LocalModified  time.Time `json:"local_modified"`
	RemoteModified time.Time `json:"remote_modified"`
	LocalChecksum  string    `json:"local_checksum"`
	RemoteChecksum string    `json:"remote_checksum"`
}

// SyncResult is returned by every sync operation. Optional fields are empty when unknown.
type SyncResult struct {
	Action           SyncAction `json:"action"`
	Success          bool       `json:"success"`
	Message          string     `json:"message"`
	BytesTransferred int64      `json:"bytes_transferred"`
	LocalChecksum    string     `json:"local_checksum,omitempty"`
	RemoteChecksum   string     `json:"remote_checksum,omitempty"`
	ConflictDetails  string     `json:"conflict_details,omitempty"`
	LocalBackupPath  string     `json:"local_backup_path,omitempty"`
	RemoteBackupPath string     `json:"remote_backup_path,omitempty"`
}
