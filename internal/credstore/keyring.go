package credstore

import (
	"errors"
	"fmt"

	"github.com/davsync/davsync/internal/utils"
	"github.com/zalando/go-keyring"
)

const probeUser = "__davsync_probe__"

// KeyringStore keeps passwords in the OS credential manager
// (Keychain, Windows Credential Manager, Secret Service).
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (k *KeyringStore) Set(username, password string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if err := keyring.Set(k.service, username, password); err != nil {
		return fmt.Errorf("credstore: keyring store %s: %w: %w", utils.MaskUsername(username), ErrUnavailable, err)
	}
	return nil
}

func (k *KeyringStore) Get(username string) (string, error) {
	if username == "" {
		return "", ErrEmptyUsername
	}
	password, err := keyring.Get(k.service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore: keyring get %s: %w: %w", utils.MaskUsername(username), ErrUnavailable, err)
	}
	return password, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	err := keyring.Delete(k.service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("credstore: keyring delete %s: %w: %w", utils.MaskUsername(username), ErrUnavailable, err)
	}
	return nil
}

// Probe checks that the credential manager answers at all. A missing entry
// counts as reachable.
func (k *KeyringStore) Probe() error {
	_, err := keyring.Get(k.service, probeUser)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
