package cli

import (
	"context"
	"fmt"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/rabbit"
	"github.com/nlds-io/nlds/router"
	"github.com/spf13/cobra"
)

// sendArchiveNextCmd is the scheduled admin trigger that kicks off the
// next scheduled archive-put run, publishing a single message and
// exiting rather than looping as a consumer (mirrors the original's
// send_archive_next.py click command, invoked from a cron schedule).
var sendArchiveNextCmd = &cobra.Command{
	Use:   "send-archive-next",
	Short: "publish a single archive-next message and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyLogging(cfg.Logging)
		logger := common.ServiceLogger("send-archive-next", "")

		dialer := rabbit.NewDialer()
		publisher := rabbit.NewPublisher(cfg.RabbitMQ, dialer, logger)

		ctx := context.Background()
		if err := publisher.Connect(ctx); err != nil {
			return fmt.Errorf("connect publisher: %w", err)
		}
		defer publisher.Close()

		rk, msg := router.NextArchiveNext(cfg.RabbitMQ.Root)
		if err := publisher.Publish(ctx, rk, msg); err != nil {
			return fmt.Errorf("publish archive-next: %w", err)
		}
		logger.Info("published archive-next trigger")
		return nil
	},
}
