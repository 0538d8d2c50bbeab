package rabbit

import (
	"context"
	"testing"
	"time"

	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RabbitMQConfig {
	return config.RabbitMQConfig{
		User: "nlds", Password: "secret", Server: "localhost", Port: 5672,
		VHost: "/nlds", Exchange: "nlds-exchange", Heartbeat: 2,
	}
}

func TestPublisher_ConnectDeclaresExchange(t *testing.T) {
	mockChan := &MockChannel{ConfirmAck: true}
	dialer := &MockDialer{Conn: &MockConnection{Chan: mockChan}}

	p := NewPublisher(testConfig(), dialer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Connect(ctx))
	assert.Contains(t, mockChan.DeclaredExchanges, "nlds-exchange")
	assert.Equal(t, "nlds-exchange", p.defaultExchange)
	require.NoError(t, p.Close())
}

func TestPublisher_PublishSendsRoutingKeyAndBody(t *testing.T) {
	mockChan := &MockChannel{ConfirmAck: true}
	dialer := &MockDialer{Conn: &MockConnection{Chan: mockChan}}

	p := NewPublisher(testConfig(), dialer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Connect(ctx))

	msg := &common.Message{
		Details: common.Details{TransactionID: common.NewTransactionID()},
		Type:    common.MessageTypeStandard,
	}
	rk := common.NewRoutingKey("nlds", common.WorkflowIndex, common.ActionInit)

	require.NoError(t, p.Publish(ctx, rk, msg))
	require.Len(t, mockChan.PublishedKeys, 1)
	assert.Equal(t, "nlds.index.init", mockChan.PublishedKeys[0])
	require.NoError(t, p.Close())
}

func TestKeepalive_PollsOnlyWhilePolling(t *testing.T) {
	calls := make(chan struct{}, 10)
	k := NewKeepalive(20*time.Millisecond, func() error {
		calls <- struct{}{}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	k.Start(ctx)

	select {
	case <-calls:
		t.Fatal("keepalive polled before StartPolling was called")
	case <-time.After(50 * time.Millisecond):
	}

	k.StartPolling()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive never polled after StartPolling")
	}

	k.Kill()
}

func TestRetryPolicy_SucceedsEventually(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
	attempts := 0
	err := p.Retry(context.Background(), nil, "test", func() error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_RespectsContextCancellation(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Millisecond, Factor: 2, MaxDelay: 10 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Retry(ctx, nil, "test", func() error { return assert.AnError })
	assert.ErrorIs(t, err, context.Canceled)
}
