package credstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davsync/davsync/internal/dav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testKey(t *testing.T) Key {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)
	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("hunter2"),
		bytes.Repeat([]byte{0x00, 0xff}, 4096),
		[]byte("密码 with unicode"),
	}
	for _, in := range inputs {
		ct, nonce, err := EncryptData(in, key)
		require.NoError(t, err)
		assert.Len(t, nonce, NonceSize)

		out, err := DecryptData(ct, key, nonce)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, out))
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := testKey(t)
	ct1, n1, err := EncryptData([]byte("same"), key)
	require.NoError(t, err)
	ct2, n2, err := EncryptData([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, ct1, ct2)
}

func TestDecryptRejectsTampering(t *testing.T) {
	key := testKey(t)
	ct, nonce, err := EncryptData([]byte("secret"), key)
	require.NoError(t, err)

	tampered := append([]byte{}, ct...)
	tampered[0] ^= 0x01
	_, err = DecryptData(tampered, key, nonce)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = DecryptData(ct, testKey(t), nonce)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = DecryptData(ct, key, nonce[:4])
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a, err := deriveKey([]byte("machine"), []byte("app"))
	require.NoError(t, err)
	b, err := deriveKey([]byte("machine"), []byte("app"))
	require.NoError(t, err)
	c, err := deriveKey([]byte("machine"), []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore(ServiceName)

	_, err := store.Get("bob")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("bob", "pw1"))
	got, err := store.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "pw1", got)

	require.NoError(t, store.Set("bob", "pw2"))
	got, err = store.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "pw2", got)

	require.NoError(t, store.Delete("bob"))
	assert.ErrorIs(t, store.Delete("bob"), ErrNotFound)
	assert.ErrorIs(t, store.Set("", "x"), ErrEmptyUsername)
	assert.NoError(t, store.Probe())
}

func TestKeyringStoreSurfacesErrors(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	t.Cleanup(keyring.MockInit)
	store := NewKeyringStore(ServiceName)

	err := store.Set("bob", "pw")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "no session bus")

	_, err = store.Get("bob")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Probe(), ErrUnavailable)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "secrets.json")
	key := testKey(t)
	store := NewFileStore(path, key)

	_, err := store.Get("bob")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("bob", "pw1"))
	require.NoError(t, store.Set("carol", "pw2"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "pw1")

	// a second instance with the same key reads the same entries
	other := NewFileStore(path, key)
	got, err := other.Get("carol")
	require.NoError(t, err)
	assert.Equal(t, "pw2", got)

	// the wrong key cannot open them
	_, err = NewFileStore(path, testKey(t)).Get("bob")
	assert.ErrorIs(t, err, ErrDecrypt)

	require.NoError(t, store.Delete("bob"))
	_, err = store.Get("bob")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("bob"), ErrNotFound)
}

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(username string) (string, error) {
	c.gets++
	return c.Store.Get(username)
}

func TestCachedStore(t *testing.T) {
	backing := &countingStore{Store: NewFileStore(filepath.Join(t.TempDir(), "s.json"), testKey(t))}
	cached := NewCachedStore(backing, 4, time.Minute)

	require.NoError(t, cached.Set("bob", "pw"))
	for range 3 {
		got, err := cached.Get("bob")
		require.NoError(t, err)
		assert.Equal(t, "pw", got)
	}
	assert.Zero(t, backing.gets)

	cached.Purge()
	_, err := cached.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.gets)

	require.NoError(t, cached.Delete("bob"))
	assert.Zero(t, cached.Len())
	_, err = cached.Get("bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStoreExpires(t *testing.T) {
	backing := &countingStore{Store: NewFileStore(filepath.Join(t.TempDir(), "s.json"), testKey(t))}
	cached := NewCachedStore(backing, 4, 20*time.Millisecond)

	require.NoError(t, cached.Set("bob", "pw"))
	assert.Eventually(t, func() bool { return cached.Len() == 0 }, time.Second, 10*time.Millisecond)

	_, err := cached.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.gets)
}

func TestNewStore(t *testing.T) {
	keyring.MockInit()
	key := testKey(t)

	s, err := NewStore(Options{Backend: BackendKeyring})
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, s)

	s, err = NewStore(Options{Backend: BackendAuto})
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, s)

	s, err = NewStore(Options{Backend: BackendFile, FilePath: filepath.Join(t.TempDir(), "s.json"), Key: &key, CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)

	_, err = NewStore(Options{Backend: BackendFile})
	assert.Error(t, err)

	_, err = NewStore(Options{Backend: "vault"})
	assert.Error(t, err)
}

func TestNewStoreAutoFallsBackToFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keyring"))
	t.Cleanup(keyring.MockInit)
	key := testKey(t)

	s, err := NewStore(Options{FilePath: filepath.Join(t.TempDir(), "s.json"), Key: &key})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
}

func TestSecureConfigRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore(ServiceName)

	cfg := dav.NewConfig("https://dav.example.com/dav/", "bob@example.com", "hunter2")
	cfg.AutoSync = true

	sc, err := FromConfig(cfg, store)
	require.NoError(t, err)
	assert.NotContains(t, sc.String(), "hunter2")
	assert.True(t, sc.IsValidStructure())

	stored, err := store.Get("bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", stored)

	back, err := sc.ToConfig(store)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestSecureConfigFailsLoudly(t *testing.T) {
	keyring.MockInitWithError(errors.New("locked keychain"))
	t.Cleanup(keyring.MockInit)
	store := NewKeyringStore(ServiceName)

	cfg := dav.NewConfig("https://dav.example.com/dav/", "bob", "pw")
	_, err := FromConfig(cfg, store)
	assert.ErrorIs(t, err, ErrUnavailable)

	sc := SecureConfig{ServerURL: cfg.ServerURL, Username: "bob"}
	_, err = sc.ToConfig(store)
	assert.ErrorIs(t, err, ErrUnavailable)

	keyring.MockInit()
	_, err = sc.ToConfig(NewKeyringStore(ServiceName))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = FromConfig(dav.Config{Username: "bob"}, store)
	assert.Error(t, err)
}

func TestSecureConfigApply(t *testing.T) {
	sc := DefaultSecureConfig()
	url := "https://cloud.example.com/remote.php/dav/"
	interval := 5
	enabled := true

	updated := sc.Apply(Update{ServerURL: &url, SyncIntervalMinutes: &interval, Enabled: &enabled})
	assert.Equal(t, url, updated.ServerURL)
	assert.Equal(t, 5, updated.SyncIntervalMinutes)
	assert.True(t, updated.Enabled)
	assert.Equal(t, sc.RemotePath, updated.RemotePath)
	assert.False(t, updated.IsValidStructure())
}
