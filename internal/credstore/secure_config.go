package credstore

import (
	"fmt"

	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/utils"
)

// SecureConfig is a dav.Config without the password. The password lives in
// a Store keyed by Username and is resolved on demand.
type SecureConfig struct {
	ServerURL           string `json:"server_url" mapstructure:"server_url"`
	Username            string `json:"username" mapstructure:"username"`
	RemotePath          string `json:"remote_path" mapstructure:"remote_path"`
	SyncIntervalMinutes int    `json:"sync_interval" mapstructure:"sync_interval"`
	AutoSync            bool   `json:"auto_sync" mapstructure:"auto_sync"`
	Enabled             bool   `json:"enabled" mapstructure:"enabled"`
}

// DefaultSecureConfig mirrors dav.DefaultConfig.
func DefaultSecureConfig() SecureConfig {
	d := dav.DefaultConfig()
	return SecureConfig{
		ServerURL:           d.ServerURL,
		RemotePath:          d.RemotePath,
		SyncIntervalMinutes: d.SyncIntervalMinutes,
	}
}

// FromConfig stores cfg.Password in store and returns the password free view.
// Nothing is returned when the password cannot be stored.
func FromConfig(cfg dav.Config, store Store) (SecureConfig, error) {
	if cfg.Username == "" {
		return SecureConfig{}, ErrEmptyUsername
	}
	if cfg.Password == "" {
		return SecureConfig{}, fmt.Errorf("credstore: refusing to store an empty password for %s", utils.MaskUsername(cfg.Username))
	}
	if err := store.Set(cfg.Username, cfg.Password); err != nil {
		return SecureConfig{}, err
	}

	return SecureConfig{
		ServerURL:           cfg.ServerURL,
		Username:            cfg.Username,
		RemotePath:          cfg.RemotePath,
		SyncIntervalMinutes: cfg.SyncIntervalMinutes,
		AutoSync:            cfg.AutoSync,
		Enabled:             cfg.Enabled,
	}, nil
}

// ToConfig fetches the password from store and returns a usable dav.Config.
// A missing or unreachable password is an error, never an empty string.
func (s SecureConfig) ToConfig(store Store) (dav.Config, error) {
	if s.Username == "" {
		return dav.Config{}, ErrEmptyUsername
	}
	password, err := store.Get(s.Username)
	if err != nil {
		return dav.Config{}, fmt.Errorf("credstore: resolve password for %s: %w", utils.MaskUsername(s.Username), err)
	}
	if password == "" {
		return dav.Config{}, fmt.Errorf("credstore: resolve password for %s: %w", utils.MaskUsername(s.Username), ErrNotFound)
	}

	return dav.Config{
		ServerURL:           s.ServerURL,
		Username:            s.Username,
		Password:            password,
		RemotePath:          s.RemotePath,
		SyncIntervalMinutes: s.SyncIntervalMinutes,
		AutoSync:            s.AutoSync,
		Enabled:             s.Enabled,
	}, nil
}

// IsValidStructure reports whether the fields needed to resolve a password are set.
func (s SecureConfig) IsValidStructure() bool {
	return s.ServerURL != "" && s.Username != ""
}

// Update is a partial edit. Nil fields are left unchanged.
type Update struct {
	ServerURL           *string
	Username            *string
	RemotePath          *string
	SyncIntervalMinutes *int
	AutoSync            *bool
	Enabled             *bool
}

// Apply returns s with the non nil fields of u applied.
func (s SecureConfig) Apply(u Update) SecureConfig {
	if u.ServerURL != nil {
		s.ServerURL = *u.ServerURL
	}
	if u.Username != nil {
		s.Username = *u.Username
	}
	if u.RemotePath != nil {
		s.RemotePath = *u.RemotePath
	}
	if u.SyncIntervalMinutes != nil {
		s.SyncIntervalMinutes = *u.SyncIntervalMinutes
	}
	if u.AutoSync != nil {
		s.AutoSync = *u.AutoSync
	}
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	return s
}

func (s SecureConfig) String() string {
	return fmt.Sprintf("%s@%s remote=%s enabled=%t auto=%t",
		utils.MaskUsername(s.Username), s.ServerURL, s.RemotePath, s.Enabled, s.AutoSync)
}
