package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/cloudsync"
	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/credstore"
	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/history"
)

const keepRuns = 200

// session is everything a sync command needs, opened from the config.
type session struct {
	cfg     *config.Config
	dav     dav.Config
	sync    *cloudsync.CloudSync
	journal *history.Journal
	profile string
}

// openSession loads the config, resolves the password and restores the
// persisted status.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, journal, profile, err := openJournal(cmd)
	if err != nil {
		return nil, err
	}

	davCfg, err := resolveDavConfig(cfg)
	if err != nil {
		journal.Close()
		return nil, err
	}

	status, _, err := journal.LoadStatus(cmd.Context(), profile)
	if err != nil {
		slog.Warn("status", "op", "load", "error", err)
	}

	cs, err := cloudsync.New(davCfg, cfg.LocalPath,
		cloudsync.WithStatus(status),
		cloudsync.WithClientOptions(dav.WithRetry(cfg.RetryConfig())),
	)
	if err != nil {
		journal.Close()
		return nil, err
	}

	return &session{cfg: cfg, dav: davCfg, sync: cs, journal: journal, profile: profile}, nil
}

// openJournal loads the config and opens its journal. It needs no credentials.
func openJournal(cmd *cobra.Command) (*config.Config, *history.Journal, string, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", err
	}

	journal, err := history.Open(cmd.Context(), cfg.HistoryPath)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, journal, profileKey(cfg), nil
}

// resolveDavConfig attaches the password from DAVSYNC_PASSWORD or the credential store.
func resolveDavConfig(cfg *config.Config) (dav.Config, error) {
	if pw := os.Getenv(envPassword); pw != "" {
		d := dav.NewConfig(cfg.ServerURL, cfg.Username, pw)
		d.RemotePath = cfg.RemotePath
		d.SyncIntervalMinutes = cfg.SyncIntervalMinutes
		d.AutoSync = cfg.AutoSync
		d.Enabled = cfg.Enabled
		return d, nil
	}

	store, err := credstore.NewStore(cfg.StoreOptions())
	if err != nil {
		return dav.Config{}, err
	}
	return cfg.Secure().ToConfig(store)
}

func profileKey(cfg *config.Config) string {
	return fmt.Sprintf("%s|%s", cfg.LocalPath, remoteFileURL(cfg))
}

func remoteFileURL(cfg *config.Config) string {
	d := dav.NewConfig(cfg.ServerURL, cfg.Username, "")
	d.RemotePath = cfg.RemotePath
	return d.RemoteFileURL()
}

// finish journals the outcome and persists the status after a success.
func (s *session) finish(ctx context.Context, op string, started time.Time, res *cloudsync.SyncResult, opErr error) {
	// the journal outlives a cancelled command
	ctx = context.WithoutCancel(ctx)

	run := history.NewRun(s.profile, op, started, time.Now(), res, opErr)
	if _, err := s.journal.Record(ctx, run); err != nil {
		slog.Warn("history", "op", "record", "error", err)
	}
	if _, err := s.journal.Prune(ctx, s.profile, keepRuns); err != nil {
		slog.Warn("history", "op", "prune", "error", err)
	}
	if opErr == nil && res != nil && res.Success {
		if err := s.journal.SaveStatus(ctx, s.profile, s.sync.Status()); err != nil {
			slog.Warn("history", "op", "save", "error", err)
		}
	}
}

func (s *session) Close() {
	s.sync.Close()
	s.journal.Close()
}
