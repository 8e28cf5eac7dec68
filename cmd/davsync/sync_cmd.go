package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/cloudsync"
)

func init() {
	rootCmd.AddCommand(
		newTransferCmd("sync", "Sync once, transferring whichever side is newer",
			(*cloudsync.CloudSync).Sync),
		newTransferCmd("push", "Overwrite the remote file with the local one",
			(*cloudsync.CloudSync).ForceUpload),
		newTransferCmd("pull", "Overwrite the local file with the remote one",
			(*cloudsync.CloudSync).ForceDownload),
	)
}

type transferFunc func(*cloudsync.CloudSync, context.Context) (*cloudsync.SyncResult, error)

func newTransferCmd(use, short string, op transferFunc) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			started := time.Now()
			res, err := op(s.sync, cmd.Context())
			s.finish(cmd.Context(), use, started, res, err)
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
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// addProfileFlags adds the overrides that loadConfig binds.
func addProfileFlags(cmd *cobra.Command) {
	cmd.Flags().String("local", "", "local file to sync")
	cmd.Flags().String("remote", "", "remote path of the file")
	cmd.Flags().String("retry", "", "retry preset: fast, default, patient or network")
}
