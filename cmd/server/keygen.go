package main

import (
	"fmt"

	"github.com/jrsteele09/tidal-mcp/storage"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new storage encryption key",
		Long:  "keygen prints a random 32 byte key, base64 encoded, for TIDAL_STORAGE_ENCRYPTION_KEY.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := storage.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
