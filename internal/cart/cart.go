package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/catalog"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOutOfStock    = errors.New("out of stock")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// PartialCommitError reports a submission that bought some products before a
// later one failed. Committed products are not rolled back.
type PartialCommitError struct {
	Committed []string
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("cart partially committed [%s]: %v", strings.Join(e.Committed, ","), e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

type Item struct {
	Product *catalog.Product
	Amount  int
}

// Cart reserves requested amounts against catalog products. Entries keep
// insertion order; the stock check at Submit is the authoritative one.
type Cart struct {
	mu    sync.Mutex
	items []Item
	index map[string]int
}

func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// AddProduct sets the reservation for p to amount, replacing any earlier one.
func (c *Cart) AddProduct(p *catalog.Product, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if !p.IsAvailable(amount) {
		return fmt.Errorf("%w: product %s has only %d items", ErrOutOfStock, p.Name(), p.Available())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[p.Name()]; ok {
		c.items[i] = Item{Product: p, Amount: amount}
		return nil
	}
	c.index[p.Name()] = len(c.items)
	c.items = append(c.items, Item{Product: p, Amount: amount})
	return nil
}

func (c *Cart) RemoveProduct(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[name]
	if !ok {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindex()
}

func (c *Cart) Lookup(name string) (*catalog.Product, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[name]
	if !ok {
		return nil, 0, false
	}
	return c.items[i].Product, c.items[i].Amount, true
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cart) IsEmpty() bool { return c.Len() == 0 }

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Product.Price().Mul(decimal.NewFromInt(int64(it.Amount))))
	}
	return total
}

// Submit buys every reserved amount in insertion order and returns the
// product names. On success the cart is emptied. If a product fails after
// others were bought, the bought entries are dropped from the cart and the
// error is a *PartialCommitError.
func (c *Cart) Submit() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) == 0 {
		return nil, ErrEmptyCart
	}

	names := make([]string, 0, len(c.items))
	for i, it := range c.items {
		err := it.Product.Buy(it.Amount)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("submit cart: %w", err)
			}
			c.items = append([]Item(nil), c.items[i:]...)
			c.reindex()
			return nil, &PartialCommitError{Committed: names, Err: fmt.Errorf("submit cart: %w", err)}
		}
		names = append(names, it.Product.Name())
	}

	c.items = nil
	c.index = make(map[string]int)
	return names, nil
}

func (c *Cart) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, it := range c.items {
		c.index[it.Product.Name()] = i
	}
}
