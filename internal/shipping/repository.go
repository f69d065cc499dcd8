package shipping

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound                = errors.New("shipment not found")
	ErrUnsupportedShippingType = errors.New("shipping type is not available")
	ErrInvalidDueDate          = errors.New("due date must be in the future")
	ErrInvalidStatus           = errors.New("invalid shipping status")
	ErrPollFailed              = errors.New("poll shipping")
)

// Repository persists shipment records keyed by shipping id.
type Repository interface {
	// CreateShipping stores a new record and returns the id it assigned.
	CreateShipping(ctx context.Context, s NewShipment) (string, error)
	// GetShipping returns ErrNotFound when no record exists.
	GetShipping(ctx context.Context, shippingID string) (Shipment, error)
	// UpdateShippingStatus atomically moves the record to status when the
	// stored status may advance to it, and acknowledges without writing
	// otherwise.
	UpdateShippingStatus(ctx context.Context, shippingID string, status Status) (UpdateResult, error)
}

// Publisher is the queue of shipping ids awaiting batch processing.
// Delivery is at least once.
type Publisher interface {
	SendNewShipping(ctx context.Context, shippingID string) (string, error)
	// PollShipping blocks up to wait for at most batchSize deliveries and
	// returns an empty slice when none arrive in time.
	PollShipping(ctx context.Context, batchSize int, wait time.Duration) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	// Nack returns the delivery to the queue for redelivery.
	Nack(ctx context.Context, d Delivery) error
}

// resolveUpdate decides the outcome of moving a record from current to next.
func resolveUpdate(shippingID string, current, next Status, now time.Time) UpdateResult {
	res := UpdateResult{ShippingID: shippingID, Previous: current, Status: current}
	if current.CanAdvanceTo(next) {
		res.Status = next
		res.Applied = true
		res.UpdatedAt = now
	}
	return res
}
