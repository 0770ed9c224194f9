// Package cart implements the in-memory shopping cart of one shopper.
package cart

import (
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// MaxQuantity is the largest quantity a single line may hold.
const MaxQuantity = 99

// Sentinel errors matched by the typed errors below.
var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrQuantityLimit   = errors.New("quantity limit exceeded")
	ErrLineNotFound    = errors.New("product not found in cart")
)

// InvalidQuantityError indicates a quantity outside the accepted range.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for product %s must be between 1 and %d", e.Quantity, e.ProductID, MaxQuantity)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == ErrInvalidQuantity }

// QuantityLimitError indicates that adding would push a line past MaxQuantity.
type QuantityLimitError struct {
	ProductID string
	Current   int
	Requested int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("maximum quantity per product is %d: product %s has %d, cannot add %d",
		MaxQuantity, e.ProductID, e.Current, e.Requested)
}

func (e *QuantityLimitError) Is(target error) bool { return target == ErrQuantityLimit }

// LineNotFoundError indicates the cart has no line for a product.
type LineNotFoundError struct {
	ProductID string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found in cart", e.ProductID)
}

func (e *LineNotFoundError) Is(target error) bool { return target == ErrLineNotFound }

// Line is a product snapshot and its quantity.
type Line struct {
	Product  product.Product
	Quantity int
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per product, in insertion order. Every
// mutation either fully applies or leaves the cart unchanged. A Cart is
// safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts quantity units of p in the cart. An existing line grows by
// quantity; a new line stores a deep copy of p so later catalog changes do
// not affect it.
func (c *Cart) Add(p product.Product, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{ProductID: p.ID, Quantity: quantity}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.index(p.ID); i >= 0 {
		cur := c.lines[i].Quantity
		if cur+quantity > MaxQuantity {
			return &QuantityLimitError{ProductID: p.ID, Current: cur, Requested: quantity}
		}
		c.lines[i].Quantity = cur + quantity
		return nil
	}

	if quantity > MaxQuantity {
		return &QuantityLimitError{ProductID: p.ID, Requested: quantity}
	}
	c.lines = append(c.lines, Line{Product: product.Clone(p), Quantity: quantity})
	return nil
}

// Remove drops the line for productID. Missing lines are ignored.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	}
}

// UpdateQuantity sets the quantity of an existing line exactly.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(productID)
	if i < 0 {
		return &LineNotFoundError{ProductID: productID}
	}
	c.lines[i].Quantity = quantity
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
}

// Deduct takes the quantities in lines out of the cart, such as the lines of
// a placed order. A line whose quantity drops to zero is removed. Products
// not in lines, and units added after lines were taken, stay in the cart.
func (c *Cart) Deduct(lines []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range lines {
		i := c.index(l.Product.ID)
		if i < 0 {
			continue
		}
		if left := c.lines[i].Quantity - l.Quantity; left > 0 {
			c.lines[i].Quantity = left
			continue
		}
		c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	lines, _ := c.Snapshot()
	return lines
}

// Total returns the sum of all line subtotals, computed on every call.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	return total(c.lines)
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Snapshot returns the lines and their total from a single consistent view.
func (c *Cart) Snapshot() ([]Line, decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Line, len(c.lines))
	for i, l := range c.lines {
		out[i] = Line{Product: product.Clone(l.Product), Quantity: l.Quantity}
	}
	return out, total(c.lines)
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}
