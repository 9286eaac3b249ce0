// Package cart holds the storefront's in-memory cart. Items toggle in and
// out by id and the whole cart empties on a settled checkout. Nothing is
// persisted.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Item is a cart line. Price is the catalog unit price in major currency
// units.
type Item struct {
	ID    string
	Title string
	Price decimal.Decimal
}

// Cart is safe for concurrent use, though the UI drives it from a single
// event loop in practice.
type Cart struct {
	mu    sync.Mutex
	items []Item
	index map[string]struct{}
}

func New() *Cart {
	return &Cart{index: make(map[string]struct{})}
}

// Toggle adds the item when absent and removes it when present. Toggling
// the same item twice restores the previous contents.
func (c *Cart) Toggle(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[item.ID]; ok {
		c.items = remove(c.items, item.ID)
		delete(c.index, item.ID)
		return
	}
	c.items = append(c.items, item)
	c.index[item.ID] = struct{}{}
}

// Contains reports whether an item with the given id is in the cart.
func (c *Cart) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[id]
	return ok
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Total sums the unit prices of every line.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price)
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.index = make(map[string]struct{})
}

func remove(items []Item, id string) []Item {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
