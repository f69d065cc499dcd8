package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

// DefaultDueIn is the shipping deadline used when PlaceOrder gets a zero due date.
const DefaultDueIn = 3 * time.Second

var ErrOrderCancelled = errors.New("order is cancelled")

type Status string

const (
	StatusCreated   Status = "created"
	StatusCancelled Status = "cancelled"
)

// Shipper creates shipments for placed orders.
type Shipper interface {
	CreateShipping(ctx context.Context, shippingType shipping.ShippingType, productIDs []string, orderID string, dueDate time.Time) (string, error)
}

// Order ties a cart to the shipment created when the order is placed.
type Order struct {
	id      string
	cart    *cart.Cart
	shipper Shipper
	now     func() time.Time

	// placeMu serializes PlaceOrder; mu guards the fields below and is
	// never held across shipper I/O.
	placeMu    sync.Mutex
	mu         sync.Mutex
	status     Status
	shippingID string
}

type Option func(*Order)

func WithID(id string) Option {
	return func(o *Order) {
		if id != "" {
			o.id = id
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Order) { o.now = now }
}

func New(c *cart.Cart, shipper Shipper, opts ...Option) *Order {
	o := &Order{
		id:      uuid.NewString(),
		cart:    c,
		shipper: shipper,
		now:     func() time.Time { return time.Now().UTC() },
		status:  StatusCreated,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Order) ID() string { return o.id }

func (o *Order) Cart() *cart.Cart { return o.cart }

func (o *Order) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Order) ShippingID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shippingID
}

// PlaceOrder buys the cart contents and requests a shipment for them. A zero
// dueDate means DefaultDueIn from now. Validation happens before any stock is
// touched.
func (o *Order) PlaceOrder(ctx context.Context, shippingType shipping.ShippingType, dueDate time.Time) (string, error) {
	o.placeMu.Lock()
	defer o.placeMu.Unlock()

	if o.Status() == StatusCancelled {
		return "", fmt.Errorf("place order %s: %w", o.id, ErrOrderCancelled)
	}
	if o.cart.IsEmpty() {
		return "", fmt.Errorf("place order %s: %w", o.id, cart.ErrEmptyCart)
	}

	now := o.now()
	if dueDate.IsZero() {
		dueDate = now.Add(DefaultDueIn)
	}
	if !dueDate.After(now) {
		return "", fmt.Errorf("place order %s: %w", o.id, shipping.ErrInvalidDueDate)
	}

	if !shippingType.Valid() {
		return "", fmt.Errorf("place order %s: %w: %q", o.id, shipping.ErrUnsupportedShippingType, shippingType)
	}

	names, err := o.cart.Submit()
	if err != nil {
		return "", fmt.Errorf("place order %s: %w", o.id, err)
	}

	shippingID, err := o.shipper.CreateShipping(ctx, shippingType, names, o.id, dueDate)
	if err != nil {
		return shippingID, fmt.Errorf("place order %s: %w", o.id, err)
	}

	o.mu.Lock()
	o.shippingID = shippingID
	o.mu.Unlock()
	return shippingID, nil
}

// Cancel marks the order cancelled. Stock already bought and any shipment
// already created are left as they are.
func (o *Order) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = StatusCancelled
}
