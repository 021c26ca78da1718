package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/rota/internal/push"
)

func newVAPIDKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ROTA_VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "ROTA_VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
