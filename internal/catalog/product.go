package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Product is a stock-backed catalog entry. Its identity is the name; the
// available amount is only ever changed under the product's own lock.
type Product struct {
	name  string
	price decimal.Decimal

	mu        sync.Mutex
	available int
}

func NewProduct(name string, price decimal.Decimal, available int) (*Product, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price for %q", ErrInvalidProduct, name)
	}
	if available < 0 {
		return nil, fmt.Errorf("%w: negative stock for %q", ErrInvalidProduct, name)
	}
	return &Product{name: name, price: price, available: available}, nil
}

// MustProduct is NewProduct for fixtures and seed data.
func MustProduct(name string, price decimal.Decimal, available int) *Product {
	p, err := NewProduct(name, price, available)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Product) Name() string { return p.name }
func (p *Product) String() string { return p.name }

func (p *Product) Price() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price
}

func (p *Product) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *Product) IsAvailable(requested int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available >= requested
}

// Buy checks and decrements stock as one step, so two buyers racing for the
// last units cannot both succeed.
func (p *Product) Buy(requested int) error {
	if requested < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, requested)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.available < requested {
		return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, p.name, p.available, requested)
	}
	p.available -= requested
	return nil
}

func (p *Product) Restock(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	p.mu.Lock()
	p.available += amount
	p.mu.Unlock()
	return nil
}

func (p *Product) setStock(price decimal.Decimal, available int) {
	p.mu.Lock()
	p.price = price
	p.available = available
	p.mu.Unlock()
}
