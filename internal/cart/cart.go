// Package cart implements the per-session purchase cart. A Cart is owned by
// exactly one POS session and carries no durability: nothing touches the
// catalog or a sale until checkout commits.
package cart

import (
	"errors"

	"swiftsale/backend/internal/domain"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrIndexOutOfRange = errors.New("cart line index out of range")
)

// Cart holds an ordered sequence of lines, unique by product id. Adding a
// product already in the cart increases its quantity instead of appending a
// duplicate line.
type Cart struct {
	lines []domain.CartLine
}

func New() *Cart {
	return &Cart{}
}

// Add merges qty units of the given product into the cart. The caller has
// already resolved the product; its name and price are snapshotted here so
// later catalog edits do not change this cart.
func (c *Cart) Add(product domain.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			c.lines[i].Qty += qty
			return nil
		}
	}
	c.lines = append(c.lines, domain.CartLine{
		ProductID:      product.ID,
		NameSnapshot:   product.Name,
		UnitPriceCents: product.UnitPriceCents,
		Qty:            qty,
	})
	return nil
}

// Remove deletes the line at the given zero-based index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrIndexOutOfRange
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Subtotal is Σ(unit_price_snapshot × qty); zero for an empty cart.
func (c *Cart) Subtotal() int64 {
	total := int64(0)
	for _, line := range c.lines {
		total += line.UnitPriceCents * int64(line.Qty)
	}
	return total
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy; callers cannot mutate cart state through it.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}
