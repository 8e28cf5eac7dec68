package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/denisbrodbeck/machineid"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	NonceSize = 12
)

var ErrDecrypt = errors.New("credstore: decrypt failed")

// Key is a 256-bit AES key.
type Key [KeySize]byte

// GenerateKey returns a random key.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return Key{}, fmt.Errorf("credstore: generate key: %w", err)
	}
	return k, nil
}

// DeriveMachineKey derives a key bound to this machine and appID.
// The machine id is hashed with appID so the raw id never leaves the host.
func DeriveMachineKey(appID string) (Key, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return Key{}, fmt.Errorf("credstore: machine id: %w", err)
	}
	return deriveKey([]byte(id), []byte(appID))
}

func deriveKey(secret, info []byte) (Key, error) {
	var k Key
	r := hkdf.New(sha256.New, secret, []byte("davsync/credstore/v1"), info)
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return Key{}, fmt.Errorf("credstore: derive key: %w", err)
	}
	return k, nil
}

// EncryptData seals plaintext with AES-256-GCM under key. Every call draws a
// fresh random nonce, which is returned next to the ciphertext.
func EncryptData(plaintext []byte, key Key) (ciphertext, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("credstore: nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptData opens ciphertext produced by EncryptData.
func DecryptData(ciphertext []byte, key Key, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrDecrypt, NonceSize)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("credstore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credstore: gcm: %w", err)
	}
	return gcm, nil
}
