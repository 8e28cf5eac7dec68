package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/config"
	"github.com/davsync/davsync/internal/credstore"
	"github.com/davsync/davsync/internal/dav"
	"github.com/davsync/davsync/internal/retry"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

func newLoginCmd() *cobra.Command {
	var passwordStdin bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store WebDAV credentials and write the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			var server, username, password string
			check := func(s, u, p string) error {
				d := davConfigFor(cfg, s, u, p)
				if err := d.Validate(); err != nil {
					return err
				}
				client, err := dav.New(d, dav.WithRetry(retry.Fast()))
				if err != nil {
					return err
				}
				defer client.Close()
				if err := client.TestConnection(cmd.Context()); err != nil {
					return errors.New(friendly(err))
				}
				server, username, password = s, u, p
				return nil
			}

			switch {
			case passwordStdin:
				pw, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				if err := check(cfg.ServerURL, cfg.Username, pw); err != nil {
					return err
				}
			case isatty.IsTerminal(os.Stdin.Fd()):
				if err := RunLoginTUI(LoginTUIOpts{
					ServerURL:  cfg.ServerURL,
					Username:   cfg.Username,
					LocalPath:  cfg.LocalPath,
					ConfigPath: cfg.Path,
					Submit:     check,
				}); err != nil {
					return err
				}
			default:
				return errors.New("not a terminal: pass --username and --password-stdin")
			}

			cfg.ServerURL, cfg.Username = server, username
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := credstore.NewStore(cfg.StoreOptions())
			if err != nil {
				return err
			}
			secure, err := credstore.FromConfig(davConfigFor(cfg, server, username, password), store)
			if err != nil {
				return err
			}
			cfg.SetSecure(secure)
			if err := cfg.Save(); err != nil {
				return err
			}

			if !quiet {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, green.Render("✔ logged in"))
				logConfig(cmd, cfg)
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("server", "s", "", "WebDAV server url")
	cmd.Flags().StringP("username", "u", "", "WebDAV username")
	cmd.Flags().String("local", "", "local file to sync")
	cmd.Flags().String("remote", "", "remote path of the file")
	cmd.Flags().String("backend", "", "credential backend: auto, keyring or file")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable output")
	return cmd
}

func davConfigFor(cfg *config.Config, server, username, password string) dav.Config {
	d := dav.NewConfig(server, username, password)
	d.RemotePath = cfg.RemotePath
	d.SyncIntervalMinutes = cfg.SyncIntervalMinutes
	d.AutoSync = cfg.AutoSync
	d.Enabled = cfg.Enabled
	return d
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("read password: empty input")
	}
	return pw, nil
}

func logConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	m := cfg.Masked()
	field(out, "Server", m.ServerURL)
	field(out, "Username", m.Username)
	field(out, "Remote", m.RemotePath)
	field(out, "Local", m.LocalPath)
	field(out, "Credentials", m.CredentialBackend)
	field(out, "Config", m.Path)
}
