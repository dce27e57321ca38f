/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/indicadores/apiserver/config"
	"github.com/indicadores/apiserver/internal/mq"
	"github.com/indicadores/apiserver/internal/services"
)

// eventsCmd groups commands for calculation integration events.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect calculation events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print calculation events as they are published",
	Long: `Subscribe to the configured events channel and log every calculation
event until interrupted. Requires MQ_BACKEND.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := config.SetupLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info("tailing calculation events", "backend", cfg.MQ.Backend, "channel", cfg.EventsChannel)
		err = broker.Subscribe(ctx, cfg.EventsChannel, func(ctx context.Context, msg mq.Message) error {
			event, err := services.DecodeEvent(msg.Data)
			if err != nil {
				logger.Warn("skipping malformed event", "message_id", msg.ID, "error", err)
				return nil
			}
			logger.Info("calculation event",
				"message_id", msg.ID,
				"type", event.Type,
				"calculation_id", event.Calculation.ID,
				"indicator_id", event.Calculation.IndicatorID,
				"state", event.Calculation.State,
				"actor_id", event.ActorID,
				"occurred_at", event.OccurredAt,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
