package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrDuplicateProduct = errors.New("product already exists")
)

// Catalog owns the canonical Product records. Carts hold the same handles,
// so stock changes made through a cart are visible through the catalog.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*Product
}

func New(products ...*Product) (*Catalog, error) {
	c := &Catalog{products: make(map[string]*Product, len(products))}
	for _, p := range products {
		if err := c.Add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) Add(p *Product) error {
	if p == nil {
		return fmt.Errorf("%w: nil product", ErrInvalidProduct)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProduct, p.Name())
	}
	c.products[p.Name()] = p
	return nil
}

// Upsert creates the product or resets price and stock of the existing
// handle in place.
func (c *Catalog) Upsert(name string, price decimal.Decimal, available int) (*Product, error) {
	candidate, err := NewProduct(name, price, available)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.products[name]; ok {
		existing.setStock(price, available)
		return existing, nil
	}
	c.products[name] = candidate
	return candidate, nil
}

func (c *Catalog) Get(name string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	}
	return p, nil
}

func (c *Catalog) List() []*Product {
	c.mu.RLock()
	out := make([]*Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
