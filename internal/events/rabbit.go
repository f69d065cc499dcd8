package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

// RabbitPublisher queues shipping ids on a durable RabbitMQ queue and pulls
// them back with manual acknowledgement.
type RabbitPublisher struct {
	mu     sync.Mutex
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
	now    func() time.Time
}

func NewRabbitPublisher(conn *amqp.Connection, queue string, logger *zap.Logger) (*RabbitPublisher, error) {
	if queue == "" {
		queue = DefaultShippingQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare the queue so publish never fails due to missing infra
	if err := declareShippingQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &RabbitPublisher{ch: ch, queue: queue, logger: logger, now: time.Now}, nil
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

func (p *RabbitPublisher) SendNewShipping(ctx context.Context, shippingID string) (string, error) {
	body, msgID, err := encodeShipmentCreated(shippingID, p.now())
	if err != nil {
		return "", err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(
		pubCtx,
		"",      // default exchange
		p.queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msgID,
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", p.queue, err)
	}
	return msgID, nil
}

// PollShipping pulls messages until the batch is full, the queue is drained
// after at least one message, or wait elapses.
func (p *RabbitPublisher) PollShipping(ctx context.Context, batchSize int, wait time.Duration) ([]shipping.Delivery, error) {
	deadline := time.Now().Add(wait)
	out := make([]shipping.Delivery, 0, batchSize)

	for len(out) < batchSize {
		p.mu.Lock()
		msg, ok, err := p.ch.Get(p.queue, false)
		p.mu.Unlock()
		if err != nil {
			return out, fmt.Errorf("get %s: %w", p.queue, err)
		}

		if ok {
			d, keep := p.toDelivery(msg)
			if keep {
				out = append(out, d)
			}
			continue
		}

		if len(out) > 0 || !time.Now().Before(deadline) {
			break
		}

		timer := time.NewTimer(min(pollInterval, time.Until(deadline)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}
	}
	return out, nil
}

func (p *RabbitPublisher) toDelivery(msg amqp.Delivery) (shipping.Delivery, bool) {
	shippingID, eventID, err := decodeShipmentCreated(msg.Body)
	if err != nil {
		p.logger.Warn("dropping malformed shipping message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		p.mu.Lock()
		_ = p.ch.Nack(msg.DeliveryTag, false, false)
		p.mu.Unlock()
		return shipping.Delivery{}, false
	}
	if eventID == "" {
		eventID = msg.MessageId
	}
	return shipping.Delivery{
		ShippingID: shippingID,
		MessageID:  eventID,
		Receipt:    strconv.FormatUint(msg.DeliveryTag, 10),
	}, true
}

func (p *RabbitPublisher) Ack(_ context.Context, d shipping.Delivery) error {
	tag, err := strconv.ParseUint(d.Receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownDelivery, d.Receipt)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Ack(tag, false)
}

func (p *RabbitPublisher) Nack(_ context.Context, d shipping.Delivery) error {
	tag, err := strconv.ParseUint(d.Receipt, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownDelivery, d.Receipt)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Nack(tag, false, true)
}
