package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/logging"
	"github.com/iliyamo/tenant-auth-gateway/internal/queue"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Tail authentication failure events from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		qc := config.LoadQueue()
		asJSON, _ := cmd.Flags().GetBool("json")

		var h queue.Handler
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			h = func(ev queue.AuthFailureEvent) error { return enc.Encode(ev) }
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().Str("queue", qc.Name).Msg("consuming auth failure events")
		err := queue.NewConsumer(qc.URL, qc.Name, logging.Component("audit"), h).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Bool("json", false, "print events as JSON lines instead of logging them")
}
