package command

import (
	"sync"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// CART
// The cart is session-local and never persisted. It holds product references
// in insertion order and is cleared on successful checkout.
// ══════════════════════════════════════════════════════════════════════════════

// Cart is an in-memory ordered collection of products awaiting checkout.
type Cart struct {
	mu    sync.Mutex
	items []catalog.Product
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add appends a product to the cart. Duplicates are allowed.
func (c *Cart) Add(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, p)
}

// Remove deletes the first occurrence of the product id.
// Removing an absent id is a no-op.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.items {
		if p.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns a copy of the cart contents in insertion order.
func (c *Cart) Items() []catalog.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]catalog.Product(nil), c.items...)
}

// Total returns the sum of item prices.
func (c *Cart) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, p := range c.items {
		total += p.Price
	}
	return total
}

// Len returns the number of items.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
