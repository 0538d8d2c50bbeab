package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/config"
	"github.com/nlds-io/nlds/rabbit"
)

// bootstrap holds the shared plumbing every consumer subcommand needs:
// loaded config, a per-service logger, and a connected publisher/
// consumer pair bound to one queue and its wildcard bindings.
type bootstrap struct {
	cfg       *config.Config
	logger    *common.ContextLogger
	publisher *rabbit.Publisher
	consumer  *rabbit.Consumer
}

// setup loads config, configures logging, and wires a rabbit Consumer +
// Publisher for the named service against queue and the patterns
// patternsFunc derives from the loaded config's routing-key root,
// mirroring the connect sequence every consumer in rabbit/consumer.go's
// doc comment describes (spec.md §4.1).
func setup(serviceName, queue string, patternsFunc func(root string) []string) (*bootstrap, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyLogging(cfg.Logging)
	logger := common.ServiceLogger(serviceName, "")

	dialer := rabbit.NewDialer()
	publisher := rabbit.NewPublisher(cfg.RabbitMQ, dialer, logger)
	consumer := rabbit.NewConsumer(cfg.RabbitMQ, dialer, logger, serviceName, queue, patternsFunc(cfg.RabbitMQ.Root))

	return &bootstrap{cfg: cfg, logger: logger, publisher: publisher, consumer: consumer}, nil
}

// run connects the publisher, starts the healthz endpoint, and blocks on
// the consumer loop until SIGINT/SIGTERM, handing each decoded message
// to handler (spec.md §4.8: idle keepalive, active-polling consumer).
func (b *bootstrap) run(handler rabbit.Handler) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := b.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer b.publisher.Close()
	defer b.consumer.Close()

	healthz := startHealthz(healthzAddr)
	defer stopHealthz(healthz)

	err := b.consumer.Run(ctx, handler)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
