package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

type memoryMessage struct {
	body    []byte
	receipt string
}

// MemoryPublisher is an in-process queue with the same settlement semantics
// as the broker-backed publishers.
type MemoryPublisher struct {
	mu       sync.Mutex
	queue    []memoryMessage
	inflight map[string]memoryMessage
	seq      uint64
	notify   chan struct{}
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		inflight: make(map[string]memoryMessage),
		notify:   make(chan struct{}, 1),
	}
}

func (p *MemoryPublisher) SendNewShipping(_ context.Context, shippingID string) (string, error) {
	body, msgID, err := encodeShipmentCreated(shippingID, time.Now())
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.queue = append(p.queue, memoryMessage{body: body})
	p.mu.Unlock()
	p.signal()
	return msgID, nil
}

func (p *MemoryPublisher) PollShipping(ctx context.Context, batchSize int, wait time.Duration) ([]shipping.Delivery, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		if out := p.take(batchSize); len(out) > 0 {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return []shipping.Delivery{}, ctx.Err()
		case <-timer.C:
			return p.take(batchSize), nil
		case <-p.notify:
		}
	}
}

func (p *MemoryPublisher) take(batchSize int) []shipping.Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]shipping.Delivery, 0, min(batchSize, len(p.queue)))
	for len(out) < batchSize && len(p.queue) > 0 {
		msg := p.queue[0]
		p.queue = p.queue[1:]

		shippingID, eventID, err := decodeShipmentCreated(msg.body)
		if err != nil {
			continue
		}
		p.seq++
		msg.receipt = strconv.FormatUint(p.seq, 10)
		p.inflight[msg.receipt] = msg
		out = append(out, shipping.Delivery{ShippingID: shippingID, MessageID: eventID, Receipt: msg.receipt})
	}
	if len(p.queue) > 0 {
		p.signalLocked()
	}
	return out
}

func (p *MemoryPublisher) Ack(_ context.Context, d shipping.Delivery) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inflight[d.Receipt]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDelivery, d.Receipt)
	}
	delete(p.inflight, d.Receipt)
	return nil
}

func (p *MemoryPublisher) Nack(_ context.Context, d shipping.Delivery) error {
	p.mu.Lock()
	msg, ok := p.inflight[d.Receipt]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownDelivery, d.Receipt)
	}
	delete(p.inflight, d.Receipt)
	p.queue = append(p.queue, memoryMessage{body: msg.body})
	p.mu.Unlock()

	p.signal()
	return nil
}

// Pending reports queued and unsettled message counts.
func (p *MemoryPublisher) Pending() (queued, inflight int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue), len(p.inflight)
}

func (p *MemoryPublisher) signal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signalLocked()
}

func (p *MemoryPublisher) signalLocked() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
