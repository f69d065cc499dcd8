package shipping

import (
	"fmt"
	"time"
)

// ShippingType is the carrier used for a shipment. The set is closed.
type ShippingType string

const (
	NovaPoshta   ShippingType = "Нова Пошта"
	UkrPoshta    ShippingType = "Укр Пошта"
	MeestExpress ShippingType = "Meest Express"
	SelfPickup   ShippingType = "Самовивіз"
)

var availableShippingTypes = []ShippingType{NovaPoshta, UkrPoshta, MeestExpress, SelfPickup}

// ListAvailableShippingTypes returns the supported carriers in display order.
func ListAvailableShippingTypes() []ShippingType {
	out := make([]ShippingType, len(availableShippingTypes))
	copy(out, availableShippingTypes)
	return out
}

func (t ShippingType) Valid() bool {
	switch t {
	case NovaPoshta, UkrPoshta, MeestExpress, SelfPickup:
		return true
	default:
		return false
	}
}

func ParseShippingType(s string) (ShippingType, error) {
	t := ShippingType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedShippingType, s)
	}
	return t, nil
}

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether a record in status s may move to next.
// Transitions only go forward: created -> in_progress -> completed|failed.
// A record left in created (status update lost after publish) may still be
// finished directly.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() || s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

type Shipment struct {
	ShippingID   string       `json:"shippingId"`
	ShippingType ShippingType `json:"shippingType"`
	OrderID      string       `json:"orderId"`
	ProductIDs   []string     `json:"productIds"`
	Status       Status       `json:"shippingStatus"`
	CreatedAt    time.Time    `json:"createdDate"`
	DueDate      time.Time    `json:"dueDate"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewShipment is the input for Repository.CreateShipping.
type NewShipment struct {
	ShippingType ShippingType
	ProductIDs   []string
	OrderID      string
	Status       Status
	DueDate      time.Time
}

// UpdateResult acknowledges a status update. Applied is false when the
// stored status was left as it was (already there, or already terminal);
// Status is always the status persisted after the call.
type UpdateResult struct {
	ShippingID string    `json:"shippingId"`
	Previous   Status    `json:"previousStatus"`
	Status     Status    `json:"shippingStatus"`
	Applied    bool      `json:"applied"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Delivery is one message received from the shipping queue. Receipt is the
// broker handle used to settle it.
type Delivery struct {
	ShippingID string
	MessageID  string
	Receipt    string
}
