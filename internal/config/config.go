package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davsync/davsync/internal/credstore"
	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/retry"
	"github.com/davsync/davsync/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".davsync")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, "config.json")
	DefaultLocalPath   = filepath.Join(DefaultConfigDir, "data.json")
	DefaultHistoryPath = filepath.Join(DefaultConfigDir, "history.db")
	DefaultLogFilePath = filepath.Join(DefaultConfigDir, "logs", "davsync.log")
	DefaultCredFile    = filepath.Join(DefaultConfigDir, "credentials.json")
)

const DefaultRetryPreset = "network"

var (
	ErrNoConfig    = errors.New("config: not logged in")
	ErrNoUsername  = errors.New("config: username is required")
	ErrNoLocalPath = errors.New("config: local path is required")
)

// Config is the on-disk profile. It never carries the password.
type Config struct {
	ServerURL           string `json:"server_url" mapstructure:"server_url" yaml:"server_url"`
	Username            string `json:"username" mapstructure:"username" yaml:"username"`
	RemotePath          string `json:"remote_path" mapstructure:"remote_path" yaml:"remote_path"`
	LocalPath           string `json:"local_path" mapstructure:"local_path" yaml:"local_path"`
	SyncIntervalMinutes int    `json:"sync_interval" mapstructure:"sync_interval" yaml:"sync_interval"`
	AutoSync            bool   `json:"auto_sync" mapstructure:"auto_sync" yaml:"auto_sync"`
	Enabled             bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	CredentialBackend   string `json:"credential_backend" mapstructure:"credential_backend" yaml:"credential_backend"`
	CredentialFile      string `json:"credential_file,omitempty" mapstructure:"credential_file" yaml:"credential_file,omitempty"`
	HistoryPath         string `json:"history_path" mapstructure:"history_path" yaml:"history_path"`
	Retry               string `json:"retry" mapstructure:"retry" yaml:"retry"`
	Path                string `json:"-" mapstructure:"-" yaml:"-"`
}

// Default returns a profile with every optional field set.
func Default() *Config {
	d := dav.DefaultConfig()
	return &Config{
		ServerURL:           d.ServerURL,
		RemotePath:          d.RemotePath,
		LocalPath:           DefaultLocalPath,
		SyncIntervalMinutes: d.SyncIntervalMinutes,
		Enabled:             d.Enabled,
		CredentialBackend:   credstore.BackendAuto,
		CredentialFile:      DefaultCredFile,
		HistoryPath:         DefaultHistoryPath,
		Retry:               DefaultRetryPreset,
		Path:                DefaultConfigPath,
	}
}

// Validate fills defaults, resolves paths and checks the fields.
func (c *Config) Validate() error {
	def := Default()
	if c.ServerURL == "" {
		c.ServerURL = def.ServerURL
	}
	if c.RemotePath == "" {
		c.RemotePath = def.RemotePath
	}
	if c.SyncIntervalMinutes <= 0 {
		c.SyncIntervalMinutes = def.SyncIntervalMinutes
	}
	if c.CredentialBackend == "" {
		c.CredentialBackend = def.CredentialBackend
	}
	if c.CredentialFile == "" {
		c.CredentialFile = def.CredentialFile
	}
	if c.HistoryPath == "" {
		c.HistoryPath = def.HistoryPath
	}
	if c.Retry == "" {
		c.Retry = def.Retry
	}
	if c.Path == "" {
		c.Path = def.Path
	}

	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" {
		return ErrNoUsername
	}
	if err := dav.ValidateServerURL(c.ServerURL); err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	if c.LocalPath == "" {
		return ErrNoLocalPath
	}

	switch c.CredentialBackend {
	case credstore.BackendAuto, credstore.BackendKeyring, credstore.BackendFile:
	default:
		return fmt.Errorf("credential backend: unknown %q", c.CredentialBackend)
	}
	if _, err := retry.Preset(c.Retry); err != nil {
		return fmt.Errorf("retry: %w", err)
	}

	var err error
	for _, p := range []*string{&c.LocalPath, &c.HistoryPath, &c.CredentialFile, &c.Path} {
		if *p, err = utils.ResolvePath(*p); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the profile to c.Path with owner-only permissions.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config: no path to save to")
	}
	data, err := utils.JSONMarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

// Load reads and validates the profile at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoConfig, path)
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := utils.JSONUnmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Secure returns the password free connection part of the profile.
func (c *Config) Secure() credstore.SecureConfig {
	return credstore.SecureConfig{
		ServerURL:           c.ServerURL,
		Username:            c.Username,
		RemotePath:          c.RemotePath,
		SyncIntervalMinutes: c.SyncIntervalMinutes,
		AutoSync:            c.AutoSync,
		Enabled:             c.Enabled,
	}
}

// SetSecure copies the connection fields of s into the profile.
func (c *Config) SetSecure(s credstore.SecureConfig) {
	c.ServerURL = s.ServerURL
	c.Username = s.Username
	c.RemotePath = s.RemotePath
	c.SyncIntervalMinutes = s.SyncIntervalMinutes
	c.AutoSync = s.AutoSync
	c.Enabled = s.Enabled
}

// StoreOptions describes the credential store the profile uses.
func (c *Config) StoreOptions() credstore.Options {
	return credstore.Options{
		Backend:  c.CredentialBackend,
		FilePath: c.CredentialFile,
	}
}

// RetryConfig is the retry preset named by the profile.
func (c *Config) RetryConfig() retry.Config {
	cfg, err := retry.Preset(c.Retry)
	if err != nil {
		return retry.Network()
	}
	return cfg
}

// Masked returns a copy safe for display.
func (c *Config) Masked() Config {
	m := *c
	m.Username = utils.MaskUsername(m.Username)
	return m
}
