package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/cloudsync"
)

func init() {
	rootCmd.AddCommand(newConflictCmd(), newResolveCmd())
}

func newConflictCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Show whether local and remote files are in conflict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := s.sync.GetConflictInfo(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				// null when there is no conflict
				if err := writeJSON(out, info); err != nil {
					return err
				}
			} else if info == nil {
				fmt.Fprintln(out, green.Render("✔ no conflict"))
			} else {
				printConflict(out, info)
			}

			if info != nil {
				return errConflict
			}
			return nil
		},
	}
	addProfileFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the conflict as JSON")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var strategy string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a conflict by keeping the local, the remote or both versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resolution cloudsync.ConflictResolution
			switch {
			case strategy != "":
				r, err := cloudsync.ParseConflictResolution(strategy)
				if err != nil {
					return err
				}
				resolution = r
			case isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()):
				r, err := RunResolvePicker()
				if err != nil {
					return err
				}
				resolution = r
			default:
				return errors.New("--strategy is required when not running in a terminal")
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			started := time.Now()
			res, err := s.sync.ResolveConflict(cmd.Context(), resolution)
			s.finish(cmd.Context(), "resolve:"+resolution.String(), started, res, err)
			if err != nil {
				return err
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			return resultErr(res)
		},
	}
	addProfileFlags(cmd)
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "keep-local, keep-remote, keep-both or merge")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
