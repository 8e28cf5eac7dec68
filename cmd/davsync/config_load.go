package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davsync/davsync/internal/config"
)

const (
	envPrefix     = "DAVSYNC"
	envConfigPath = "DAVSYNC_CONFIG_PATH"
	envPassword   = "DAVSYNC_PASSWORD"
)

// flags that override config keys when set on the command line
var flagKeys = map[string]string{
	"server":   "server_url",
	"username": "username",
	"remote":   "remote_path",
	"local":    "local_path",
	"backend":  "credential_backend",
	"retry":    "retry",
}

// resolveConfigPath honours, in order, the --config flag, DAVSYNC_CONFIG_PATH
// and the default path.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return config.DefaultConfigPath
}

// loadConfig merges defaults, the config file, DAVSYNC_* variables and flags.
// A missing file is only an error when mustExist is set.
func loadConfig(cmd *cobra.Command, mustExist bool) (*config.Config, error) {
	path := resolveConfigPath(cmd)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	def := config.Default()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("username", "")
	v.SetDefault("remote_path", def.RemotePath)
	v.SetDefault("local_path", def.LocalPath)
	v.SetDefault("sync_interval", def.SyncIntervalMinutes)
	v.SetDefault("auto_sync", def.AutoSync)
	v.SetDefault("enabled", def.Enabled)
	v.SetDefault("credential_backend", def.CredentialBackend)
	v.SetDefault("credential_file", def.CredentialFile)
	v.SetDefault("history_path", def.HistoryPath)
	v.SetDefault("retry", def.Retry)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
		if !missing {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
		if mustExist {
			return nil, fmt.Errorf("%w: run 'davsync login' first", config.ErrNoConfig)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = path
	return cfg, nil
}
