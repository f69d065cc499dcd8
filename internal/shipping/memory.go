package shipping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps shipments in process memory.
type MemoryRepository struct {
	mu        sync.Mutex
	shipments map[string]Shipment
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		shipments: make(map[string]Shipment),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) CreateShipping(_ context.Context, s NewShipment) (string, error) {
	if !s.Status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s.Status)
	}

	id := uuid.NewString()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.shipments[id] = Shipment{
		ShippingID:   id,
		ShippingType: s.ShippingType,
		OrderID:      s.OrderID,
		ProductIDs:   append([]string(nil), s.ProductIDs...),
		Status:       s.Status,
		CreatedAt:    now,
		DueDate:      s.DueDate.UTC(),
		UpdatedAt:    now,
	}
	return id, nil
}

func (r *MemoryRepository) GetShipping(_ context.Context, shippingID string) (Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shipments[shippingID]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	s.ProductIDs = append([]string(nil), s.ProductIDs...)
	return s, nil
}

func (r *MemoryRepository) UpdateShippingStatus(_ context.Context, shippingID string, status Status) (UpdateResult, error) {
	if !status.Valid() {
		return UpdateResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shipments[shippingID]
	if !ok {
		return UpdateResult{}, ErrNotFound
	}

	res := resolveUpdate(shippingID, s.Status, status, r.now())
	if !res.Applied {
		res.UpdatedAt = s.UpdatedAt
		return res, nil
	}
	s.Status = res.Status
	s.UpdatedAt = res.UpdatedAt
	r.shipments[shippingID] = s
	return res, nil
}
