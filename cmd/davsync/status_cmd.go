package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/cloudsync"
	"github.com/davsync/davsync/internal/history"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

type statusOutput struct {
	Profile string               `json:"profile"`
	Status  cloudsync.SyncStatus `json:"status"`
	Runs    []history.Run        `json:"runs"`
}

func newStatusCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last sync status and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, journal, profile, err := openJournal(cmd)
			if err != nil {
				return err
			}
			defer journal.Close()

			status, _, err := journal.LoadStatus(cmd.Context(), profile)
			if err != nil {
				return err
			}
			runs, err := journal.Recent(cmd.Context(), profile, limit)
			if err != nil {
				return err
			}
			out := statusOutput{Profile: profile, Status: status, Runs: runs}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, out)
			}

			st := out.Status
			field(w, "Local", cfg.LocalPath)
			field(w, "Remote", remoteFileURL(cfg))
			field(w, "Last sync", when(st.LastSync))
			field(w, "Sync count", st.SyncCount)
			if st.SyncCount > 0 {
				field(w, "Last size", humanize.Bytes(uint64(st.LastSyncSize)))
				field(w, "Remote etag", st.RemoteETag)
				field(w, "SHA-256", st.LocalChecksum)
			}

			if len(runs) == 0 {
				return nil
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, cyan.Render("Recent runs"))
			for _, r := range runs {
				mark := green.Render("✔")
				if !r.Success {
					mark = red.Render("✘")
				}
				fmt.Fprintf(w, "%s %s %-8s %-22s %s\n", mark,
					gray.Render(humanize.Time(r.StartedAt)), r.Operation, r.Action, lightGray.Render(r.Message))
			}
			return nil
		},
	}
	addProfileFlags(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of recent runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}
