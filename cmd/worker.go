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
	"github.com/weblog/api/config"
	"github.com/weblog/api/internal/media"
	"github.com/weblog/api/internal/mq"
	"github.com/weblog/api/internal/storage"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Retries media deletions that failed during requests",
	Long: `Consumes the media cleanup queue and retries each deletion. Usage:

	MQ_BACKEND=rabbitmq weblog worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer queue.Close()

		objects, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}
		cleaner := media.NewCleaner(media.NewObjectStore(objects, cfg.Media.PublicURL), logger)

		logger.Info("worker consuming", "topic", cfg.MQ.CleanupTopic)
		err = queue.Subscribe(ctx, cfg.MQ.CleanupTopic, cleaner.Retry)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
