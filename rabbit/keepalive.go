package rabbit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nlds-io/nlds/common"
)

// ProcessEventsFunc pumps pending broker I/O for a connection — in the
// real client this is the channel heartbeat/frame processing that the
// underlying amqp.Connection performs internally while a Consume loop is
// reading deliveries. It is injected so the keepalive daemon is testable
// without a live broker.
type ProcessEventsFunc func() error

// Keepalive is a named background worker that polls a connection's event
// loop while consumption is active, ported from the original's
// nlds/rabbit/keepalive.py: a daemon named after a uuid, gated by a poll
// flag, pumping process_data_events() at max(heartbeat/2, 1) seconds,
// and killed via context cancellation awaited within one heartbeat
// (spec.md §4.8, §5).
type Keepalive struct {
	Name      string
	heartbeat time.Duration
	process   ProcessEventsFunc
	logger    *common.ContextLogger

	polling int32 // atomic bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewKeepalive builds a keepalive daemon for a connection with the given
// heartbeat. The daemon is idle (not polling) until StartPolling is
// called.
func NewKeepalive(heartbeat time.Duration, process ProcessEventsFunc, logger *common.ContextLogger) *Keepalive {
	return &Keepalive{
		Name:      uuid.NewString(),
		heartbeat: heartbeat,
		process:   process,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// pollInterval is max(heartbeat/2, 1s), exactly the original's
// `max(self.heartbeat / 2, 1)`.
func (k *Keepalive) pollInterval() time.Duration {
	half := k.heartbeat / 2
	if half < time.Second {
		return time.Second
	}
	return half
}

// Start launches the daemon goroutine. It runs until Kill is called or
// ctx is done.
func (k *Keepalive) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	go k.run(ctx)
}

// StartPolling gates the daemon into actively pumping process events —
// mirrors the original's poll_event.set().
func (k *Keepalive) StartPolling() { atomic.StoreInt32(&k.polling, 1) }

// StopPolling pauses pumping without killing the daemon — mirrors
// poll_event.clear().
func (k *Keepalive) StopPolling() { atomic.StoreInt32(&k.polling, 0) }

func (k *Keepalive) isPolling() bool { return atomic.LoadInt32(&k.polling) == 1 }

func (k *Keepalive) run(ctx context.Context) {
	defer close(k.done)
	ticker := time.NewTicker(k.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !k.isPolling() {
				continue
			}
			if err := k.process(); err != nil && k.logger != nil {
				k.logger.WithField("keepalive", k.Name).WithError(err).Warn("keepalive process_data_events failed")
			}
		}
	}
}

// Kill signals the daemon to stop and waits up to one heartbeat for it
// to join, matching the original's kill-event-then-join-within-one-
// heartbeat shutdown semantics (spec.md §5).
func (k *Keepalive) Kill() {
	if k.cancel == nil {
		return
	}
	k.cancel()
	select {
	case <-k.done:
	case <-time.After(k.heartbeat):
	}
}
