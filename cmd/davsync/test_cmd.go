package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/retry"
)

func init() {
	rootCmd.AddCommand(newTestCmd())
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that the server accepts the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			errOut := cmd.ErrOrStderr()
			report := func(p retry.Progress) {
				if p.LastErr != nil {
					fmt.Fprintln(errOut, lightGray.Render(p.StatusMessage()))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s as %s\n", cyan.Render(s.dav.ServerURL), s.cfg.Masked().Username)
			if err := s.sync.Client().TestConnectionWithProgress(cmd.Context(), report); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green.Render("✔ connection ok"))
			return nil
		},
	}
	cmd.Flags().String("retry", "", "retry preset: fast, default, patient or network")
	return cmd
}
