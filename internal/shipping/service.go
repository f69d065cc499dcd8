package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 10
	DefaultPollWait  = 10 * time.Second
)

// Service creates shipments, publishes them for processing and resolves
// them to completed or failed against their due date.
type Service struct {
	repo   Repository
	pub    Publisher
	logger *zap.Logger

	now       func() time.Time
	batchSize int
	pollWait  time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithPollWait(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.pollWait = d
		}
	}
}

func NewService(repo Repository, pub Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:      repo,
		pub:       pub,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: DefaultBatchSize,
		pollWait:  DefaultPollWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListAvailableShippingTypes() []ShippingType {
	return ListAvailableShippingTypes()
}

// CreateShipping persists a created shipment, publishes its id and moves it
// to in_progress. When a step after the insert fails, the id is returned
// together with the error so the caller can still reference the record.
func (s *Service) CreateShipping(ctx context.Context, shippingType ShippingType, productIDs []string, orderID string, dueDate time.Time) (string, error) {
	if !shippingType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedShippingType, shippingType)
	}
	now := s.now()
	if !dueDate.After(now) {
		return "", fmt.Errorf("%w: %s", ErrInvalidDueDate, dueDate.UTC().Format(time.RFC3339Nano))
	}

	id, err := s.repo.CreateShipping(ctx, NewShipment{
		ShippingType: shippingType,
		ProductIDs:   productIDs,
		OrderID:      orderID,
		Status:       StatusCreated,
		DueDate:      dueDate,
	})
	if err != nil {
		return "", fmt.Errorf("create shipping: %w", err)
	}

	msgID, err := s.pub.SendNewShipping(ctx, id)
	if err != nil {
		s.logger.Error("publish shipping failed", zap.String("shipping_id", id), zap.Error(err))
		return id, fmt.Errorf("publish shipping %s: %w", id, err)
	}

	// The batch processor may already have resolved the record; the guarded
	// update then leaves it alone.
	res, err := s.repo.UpdateShippingStatus(ctx, id, StatusInProgress)
	if err != nil {
		s.logger.Error("mark shipping in progress failed", zap.String("shipping_id", id), zap.Error(err))
		return id, fmt.Errorf("mark shipping %s in progress: %w", id, err)
	}

	s.logger.Info("shipping created",
		zap.String("shipping_id", id),
		zap.String("order_id", orderID),
		zap.String("shipping_type", string(shippingType)),
		zap.String("message_id", msgID),
		zap.String("status", string(res.Status)),
	)
	return id, nil
}

func (s *Service) CheckStatus(ctx context.Context, shippingID string) (Status, error) {
	sh, err := s.repo.GetShipping(ctx, shippingID)
	if err != nil {
		return "", fmt.Errorf("check status %s: %w", shippingID, err)
	}
	return sh.Status, nil
}

// ProcessShipping fails the shipment when its due date has passed and
// completes it otherwise. A shipment already completed or failed is left
// untouched and acknowledged with Applied=false.
func (s *Service) ProcessShipping(ctx context.Context, shippingID string) (UpdateResult, error) {
	sh, err := s.repo.GetShipping(ctx, shippingID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("process shipping %s: %w", shippingID, err)
	}

	target := StatusCompleted
	if sh.DueDate.Before(s.now()) {
		target = StatusFailed
	}
	return s.update(ctx, shippingID, target)
}

func (s *Service) FailShipping(ctx context.Context, shippingID string) (UpdateResult, error) {
	return s.update(ctx, shippingID, StatusFailed)
}

func (s *Service) CompleteShipping(ctx context.Context, shippingID string) (UpdateResult, error) {
	return s.update(ctx, shippingID, StatusCompleted)
}

func (s *Service) update(ctx context.Context, shippingID string, status Status) (UpdateResult, error) {
	res, err := s.repo.UpdateShippingStatus(ctx, shippingID, status)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update shipping %s to %s: %w", shippingID, status, err)
	}
	if !res.Applied {
		s.logger.Debug("shipping status unchanged",
			zap.String("shipping_id", shippingID),
			zap.String("requested", string(status)),
			zap.String("status", string(res.Status)),
		)
	}
	return res, nil
}

// ProcessShippingBatch polls the queue once and processes every delivery.
// Processed and unknown shipments are acked; anything else is nacked so the
// broker redelivers it. Per-delivery failures are joined into the error and
// do not stop the rest of the batch. Deliveries returned alongside a poll
// error are nacked unprocessed.
func (s *Service) ProcessShippingBatch(ctx context.Context) ([]UpdateResult, error) {
	deliveries, err := s.pub.PollShipping(ctx, s.batchSize, s.pollWait)
	if err != nil {
		errs := []error{fmt.Errorf("%w: %w", ErrPollFailed, err)}
		for _, d := range deliveries {
			if nackErr := s.pub.Nack(ctx, d); nackErr != nil {
				errs = append(errs, fmt.Errorf("nack %s: %w", d.MessageID, nackErr))
			}
		}
		if len(deliveries) > 0 {
			s.logger.Warn("poll failed, requeued partial batch",
				zap.Int("deliveries", len(deliveries)),
				zap.Error(err),
			)
		}
		return nil, errors.Join(errs...)
	}

	results := make([]UpdateResult, 0, len(deliveries))
	var errs []error
	for _, d := range deliveries {
		res, err := s.ProcessShipping(ctx, d.ShippingID)
		switch {
		case err == nil:
			results = append(results, res)
			if ackErr := s.pub.Ack(ctx, d); ackErr != nil {
				errs = append(errs, fmt.Errorf("ack %s: %w", d.MessageID, ackErr))
			}
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("dropping delivery for unknown shipping",
				zap.String("shipping_id", d.ShippingID),
				zap.String("message_id", d.MessageID),
			)
			errs = append(errs, err)
			if ackErr := s.pub.Ack(ctx, d); ackErr != nil {
				errs = append(errs, fmt.Errorf("ack %s: %w", d.MessageID, ackErr))
			}
		default:
			s.logger.Error("process shipping failed, requeueing",
				zap.String("shipping_id", d.ShippingID),
				zap.String("message_id", d.MessageID),
				zap.Error(err),
			)
			errs = append(errs, err)
			if nackErr := s.pub.Nack(ctx, d); nackErr != nil {
				errs = append(errs, fmt.Errorf("nack %s: %w", d.MessageID, nackErr))
			}
		}
	}

	if len(deliveries) > 0 {
		s.logger.Info("shipping batch processed",
			zap.Int("deliveries", len(deliveries)),
			zap.Int("processed", len(results)),
			zap.Int("errors", len(errs)),
		)
	}
	return results, errors.Join(errs...)
}
