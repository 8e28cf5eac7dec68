package dav

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/utils"
)

const (
	DefaultServerURL    = "https://dav.jianguoyun.com/dav/"
	DefaultRemotePath   = "/davsync/data.json"
	DefaultSyncInterval = 30
)

// Config holds the connection parameters of a WebDAV endpoint.
type Config struct {
	ServerURL           string `json:"server_url" mapstructure:"server_url"`
	Username            string `json:"username" mapstructure:"username"`
	Password            string `json:"password,omitempty" mapstructure:"password"`
	RemotePath          string `json:"remote_path" mapstructure:"remote_path"`
	SyncIntervalMinutes int    `json:"sync_interval" mapstructure:"sync_interval"`
	AutoSync            bool   `json:"auto_sync" mapstructure:"auto_sync"`
	Enabled             bool   `json:"enabled" mapstructure:"enabled"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:           DefaultServerURL,
		RemotePath:          DefaultRemotePath,
		SyncIntervalMinutes: DefaultSyncInterval,
		Enabled:             true,
	}
}

// NewConfig returns the defaults with the given endpoint and credentials.
func NewConfig(serverURL, username, password string) Config {
	cfg := DefaultConfig()
	cfg.ServerURL = serverURL
	cfg.Username = username
	cfg.Password = password
	return cfg
}

// Validate checks that the config can be used to open a client.
func (c *Config) Validate() error {
	if err := ValidateServerURL(c.ServerURL); err != nil {
		return err
	}
	if c.Username == "" {
		return daverr.InvalidConfigf("username missing")
	}
	if c.Password == "" {
		return daverr.InvalidConfigf("password missing")
	}
	if strings.TrimLeft(normalizePath(c.RemotePath), "/") == "" {
		return daverr.InvalidConfigf("remote path must name a file")
	}
	return nil
}

// ValidateServerURL accepts absolute http and https URLs only.
func ValidateServerURL(raw string) error {
	if raw == "" {
		return daverr.InvalidConfigf("server url missing")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return daverr.InvalidConfigf("server url %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return daverr.InvalidConfigf("server url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return daverr.InvalidConfigf("server url %q: host missing", raw)
	}
	return nil
}

// RemoteFileURL is the absolute URL of the synchronized resource.
func (c *Config) RemoteFileURL() string {
	return joinURL(baseURL(c.ServerURL), c.RemotePath)
}

// String renders the config without the password.
func (c Config) String() string {
	pass := "<unset>"
	if c.Password != "" {
		pass = "<hidden>"
	}
	return fmt.Sprintf("server=%s user=%s password=%s remote=%s interval=%dm auto=%t enabled=%t",
		c.ServerURL, utils.MaskSecret(c.Username), pass, c.RemotePath, c.SyncIntervalMinutes, c.AutoSync, c.Enabled)
}
