package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davsync/davsync/internal/credstore"
)

func init() {
	rootCmd.AddCommand(newLogoutCmd())
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			store, err := credstore.NewStore(cfg.StoreOptions())
			if err != nil {
				return err
			}
			err = store.Delete(cfg.Username)
			switch {
			case errors.Is(err, credstore.ErrNotFound):
				fmt.Fprintln(cmd.OutOrStdout(), gray.Render("no stored password for "+cfg.Masked().Username))
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green.Render("✔ logged out "+cfg.Masked().Username))
			return nil
		},
	}
}
