package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

// RedisPublisher keeps pending messages in a list and moves polled ones into
// a processing list until they are acked or returned.
type RedisPublisher struct {
	client     *redis.Client
	pending    string
	processing string
	logger     *zap.Logger
	now        func() time.Time
}

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, queue string, logger *zap.Logger) *RedisPublisher {
	if queue == "" {
		queue = DefaultShippingQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:     client,
		pending:    "shipping:" + queue + ":pending",
		processing: "shipping:" + queue + ":processing",
		logger:     logger,
		now:        time.Now,
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) SendNewShipping(ctx context.Context, shippingID string) (string, error) {
	body, msgID, err := encodeShipmentCreated(shippingID, p.now())
	if err != nil {
		return "", err
	}
	if err := p.client.RPush(ctx, p.pending, string(body)).Err(); err != nil {
		return "", fmt.Errorf("push %s: %w", p.pending, err)
	}
	return msgID, nil
}

// PollShipping blocks up to wait for the first message and then takes
// whatever else is already pending, up to batchSize.
func (p *RedisPublisher) PollShipping(ctx context.Context, batchSize int, wait time.Duration) ([]shipping.Delivery, error) {
	out := make([]shipping.Delivery, 0, batchSize)

	for len(out) < batchSize {
		var cmd *redis.StringCmd
		if len(out) == 0 && wait > 0 {
			cmd = p.client.BLMove(ctx, p.pending, p.processing, "LEFT", "RIGHT", wait)
		} else {
			cmd = p.client.LMove(ctx, p.pending, p.processing, "LEFT", "RIGHT")
		}

		body, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("move %s: %w", p.pending, err)
		}

		shippingID, eventID, err := decodeShipmentCreated([]byte(body))
		if err != nil {
			p.logger.Warn("dropping malformed shipping message", zap.Error(err))
			_ = p.client.LRem(ctx, p.processing, 1, body).Err()
			continue
		}
		out = append(out, shipping.Delivery{ShippingID: shippingID, MessageID: eventID, Receipt: body})
	}
	return out, nil
}

func (p *RedisPublisher) Ack(ctx context.Context, d shipping.Delivery) error {
	n, err := p.client.LRem(ctx, p.processing, 1, d.Receipt).Result()
	if err != nil {
		return fmt.Errorf("ack %s: %w", d.MessageID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDelivery, d.MessageID)
	}
	return nil
}

func (p *RedisPublisher) Nack(ctx context.Context, d shipping.Delivery) error {
	var removed *redis.IntCmd
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.LRem(ctx, p.processing, 1, d.Receipt)
		pipe.RPush(ctx, p.pending, d.Receipt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("nack %s: %w", d.MessageID, err)
	}
	if removed.Val() == 0 {
		p.logger.Warn("nacked delivery was not in processing", zap.String("message_id", d.MessageID))
	}
	return nil
}

// Requeue moves every message left in processing back to pending. Used at
// startup to recover deliveries from a worker that died before settling them.
func (p *RedisPublisher) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := p.client.LMove(ctx, p.processing, p.pending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue %s: %w", p.processing, err)
		}
		moved++
	}
}
