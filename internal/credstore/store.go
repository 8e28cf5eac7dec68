// Package credstore keeps WebDAV passwords out of the on-disk config.
package credstore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// ServiceName keys every entry written to the OS credential manager.
	ServiceName = "davsync-webdav"

	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendAuto    = "auto"
)

var (
	ErrNotFound      = errors.New("credstore: password not found")
	ErrEmptyUsername = errors.New("credstore: username missing")
	ErrUnavailable   = errors.New("credstore: credential store unavailable")
)

// Store persists one password per username.
type Store interface {
	Set(username, password string) error
	Get(username string) (string, error)
	Delete(username string) error
}

// Options configures NewStore.
type Options struct {
	// Backend is one of keyring, file or auto. Empty means auto.
	Backend string
	// FilePath is where the file backend keeps its sealed entries.
	FilePath string
	// Key seals the file backend. When nil a key derived from the machine id is used.
	Key *Key
	// CacheTTL enables a read cache in front of the backend when positive.
	CacheTTL  time.Duration
	CacheSize int
}

// NewStore builds the store selected by opts.Backend. Auto prefers the OS
// credential manager and falls back to the sealed file when it cannot be reached.
func NewStore(opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(opts.Backend) {
	case BackendKeyring:
		store = NewKeyringStore(ServiceName)
	case BackendFile:
		store, err = newFileStoreFromOptions(opts)
	case "", BackendAuto:
		kr := NewKeyringStore(ServiceName)
		if probeErr := kr.Probe(); probeErr != nil {
			slog.Warn("credstore: keyring unavailable, using sealed file", "error", probeErr)
			store, err = newFileStoreFromOptions(opts)
		} else {
			store = kr
		}
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheTTL > 0 {
		store = NewCachedStore(store, opts.CacheSize, opts.CacheTTL)
	}
	return store, nil
}

func newFileStoreFromOptions(opts Options) (*FileStore, error) {
	if opts.FilePath == "" {
		return nil, fmt.Errorf("credstore: file backend needs a path")
	}
	key := opts.Key
	if key == nil {
		derived, err := DeriveMachineKey(ServiceName)
		if err != nil {
			return nil, err
		}
		key = &derived
	}
	return NewFileStore(opts.FilePath, *key), nil
}
