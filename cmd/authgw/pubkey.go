package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/logging"
	"github.com/iliyamo/tenant-auth-gateway/internal/pubkey"
	"github.com/iliyamo/tenant-auth-gateway/internal/verifier"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Fetch and print the Identity Gateway's token signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := config.LoadAuth()
		if err != nil {
			return err
		}
		baseURL, _ := cmd.Flags().GetString("base-url")
		if baseURL == "" {
			baseURL = auth.APIBaseURL
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		p := pubkey.New(baseURL, pubkey.WithTimeout(timeout), pubkey.WithLogger(logging.Component("pubkey")))
		key, err := p.Key(cmd.Context())
		if err != nil {
			return err
		}
		// refuse to print something the verifier could not use
		if _, err := verifier.New(key, verifier.Options{}); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pubkeyCmd)

	pubkeyCmd.Flags().String("base-url", "", "Identity Gateway base URL (default $IDENTITY_API_BASE_URL)")
	pubkeyCmd.Flags().Duration("timeout", 5*time.Second, "fetch timeout")
}
