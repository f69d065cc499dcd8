package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

var _ shipping.Publisher = (*MemoryPublisher)(nil)
var _ shipping.Publisher = (*RabbitPublisher)(nil)
var _ shipping.Publisher = (*RedisPublisher)(nil)

func TestMemoryPublisher_PollReturnsInOrder(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	for _, id := range []string{"a", "b", "c"} {
		_, err := p.SendNewShipping(ctx, id)
		require.NoError(t, err)
	}

	got, err := p.PollShipping(ctx, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ShippingID)
	assert.Equal(t, "b", got[1].ShippingID)

	got, err = p.PollShipping(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ShippingID)
}

func TestMemoryPublisher_EmptyPollTimesOut(t *testing.T) {
	p := NewMemoryPublisher()

	start := time.Now()
	got, err := p.PollShipping(context.Background(), 10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryPublisher_PollWakesOnSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	p := NewMemoryPublisher()

	result := make(chan []shipping.Delivery, 1)
	go func() {
		got, _ := p.PollShipping(ctx, 10, 5*time.Second)
		result <- got
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := p.SendNewShipping(ctx, "late")
	require.NoError(t, err)

	select {
	case got := <-result:
		require.Len(t, got, 1)
		assert.Equal(t, "late", got[0].ShippingID)
	case <-time.After(2 * time.Second):
		t.Fatal("poll was not woken by send")
	}
}

func TestMemoryPublisher_NackRedelivers(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher()

	msgID, err := p.SendNewShipping(ctx, "s-1")
	require.NoError(t, err)

	got, err := p.PollShipping(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, msgID, got[0].MessageID)

	queued, inflight := p.Pending()
	assert.Equal(t, 0, queued)
	assert.Equal(t, 1, inflight)

	require.NoError(t, p.Nack(ctx, got[0]))
	require.ErrorIs(t, p.Ack(ctx, got[0]), ErrUnknownDelivery, "receipt is spent after nack")

	again, err := p.PollShipping(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "s-1", again[0].ShippingID)
	assert.Equal(t, msgID, again[0].MessageID)
	assert.NotEqual(t, got[0].Receipt, again[0].Receipt)

	require.NoError(t, p.Ack(ctx, again[0]))
	queued, inflight = p.Pending()
	assert.Zero(t, queued)
	assert.Zero(t, inflight)
}

func TestMemoryPublisher_CancelledPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := NewMemoryPublisher().PollShipping(ctx, 10, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
}

func TestMemoryPublisher_WithShippingService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := shipping.NewMemoryRepository()
	pub := NewMemoryPublisher()
	svc := shipping.NewService(repo, pub, nil, shipping.WithClock(func() time.Time { return now }), shipping.WithPollWait(10*time.Millisecond))

	id, err := svc.CreateShipping(ctx, shipping.NovaPoshta, []string{"Widget"}, "order-1", now.Add(time.Hour))
	require.NoError(t, err)

	results, err := svc.ProcessShippingBatch(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ShippingID)
	assert.Equal(t, shipping.StatusCompleted, results[0].Status)

	queued, inflight := pub.Pending()
	assert.Zero(t, queued)
	assert.Zero(t, inflight)
}
