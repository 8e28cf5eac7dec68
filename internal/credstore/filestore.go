package credstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davsync/davsync/internal/utils"
	"github.com/gofrs/flock"
)

const fileStoreVersion = 1

// FileStore keeps sealed passwords in a single JSON file. It serves hosts
// without an OS credential manager (headless Linux, containers).
type FileStore struct {
	path  string
	key   Key
	flock *flock.Flock
}

type sealedEntry struct {
	Nonce      string    `json:"nonce"`
	Ciphertext string    `json:"ciphertext"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type sealedFile struct {
	Version int                    `json:"version"`
	Entries map[string]sealedEntry `json:"entries"`
}

func NewFileStore(path string, key Key) *FileStore {
	return &FileStore{
		path:  path,
		key:   key,
		flock: flock.New(path + ".lock"),
	}
}

// Path returns the location of the sealed file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Set(username, password string) error {
	if username == "" {
		return ErrEmptyUsername
	}

	ciphertext, nonce, err := EncryptData([]byte(password), f.key)
	if err != nil {
		return err
	}

	return f.update(func(sf *sealedFile) error {
		sf.Entries[username] = sealedEntry{
			Nonce:      base64.StdEncoding.EncodeToString(nonce),
			Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
			UpdatedAt:  time.Now().UTC(),
		}
		return nil
	})
}

func (f *FileStore) Get(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername
	}

	if err := f.lock(); err != nil {
		return "", err
	}
	defer f.flock.Unlock()

	sf, err := f.read()
	if err != nil {
		return "", err
	}

	entry, ok := sf.Entries[username]
	if !ok {
		return "", ErrNotFound
	}

	nonce, err := base64.StdEncoding.DecodeString(entry.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %w", ErrDecrypt, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(entry.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %w", ErrDecrypt, err)
	}

	plaintext, err := DecryptData(ciphertext, f.key, nonce)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (f *FileStore) Delete(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	return f.update(func(sf *sealedFile) error {
		if _, ok := sf.Entries[username]; !ok {
			return ErrNotFound
		}
		delete(sf.Entries, username)
		return nil
	})
}

func (f *FileStore) lock() error {
	if err := utils.EnsureParent(f.path); err != nil {
		return fmt.Errorf("credstore: %w: %w", ErrUnavailable, err)
	}
	if err := f.flock.Lock(); err != nil {
		return fmt.Errorf("credstore: lock %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

func (f *FileStore) update(fn func(*sealedFile) error) error {
	if err := f.lock(); err != nil {
		return err
	}
	defer f.flock.Unlock()

	sf, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(sf); err != nil {
		return err
	}

	data, err := utils.JSONMarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: encode: %w", err)
	}
	if err := utils.WriteFileAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("credstore: write %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

func (f *FileStore) read() (*sealedFile, error) {
	sf := &sealedFile{Version: fileStoreVersion, Entries: map[string]sealedEntry{}}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return sf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read %s: %w: %w", filepath.Base(f.path), ErrUnavailable, err)
	}

	if err := utils.JSONUnmarshal(data, sf); err != nil {
		return nil, fmt.Errorf("credstore: decode %s: %w", filepath.Base(f.path), err)
	}
	if sf.Version != fileStoreVersion {
		return nil, fmt.Errorf("credstore: unsupported file version %d", sf.Version)
	}
	if sf.Entries == nil {
		sf.Entries = map[string]sealedEntry{}
	}
	return sf, nil
}
