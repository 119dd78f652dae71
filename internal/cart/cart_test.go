package cart

import (
	"errors"
	"testing"

	"swiftsale/backend/internal/domain"
)

func phone() domain.Product {
	return domain.Product{ID: "prod-1", Name: "iPhone 15", Category: "Electronics", UnitPriceCents: 7990000, Stock: 20}
}

func cola() domain.Product {
	return domain.Product{ID: "prod-2", Name: "Coca Cola 500ml", Category: "Beverages", UnitPriceCents: 4000, Stock: 200}
}

func TestAddMergesExistingLine(t *testing.T) {
	c := New()
	if err := c.Add(phone(), 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := c.Add(phone(), 3); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}
	if lines[0].Qty != 5 {
		t.Fatalf("expected merged qty 5, got %d", lines[0].Qty)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	c := New()
	for _, qty := range []int{0, -1, -100} {
		if err := c.Add(phone(), qty); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("rejected adds must not leave lines, got %d", c.Len())
	}
}

func TestAddSnapshotsNameAndPrice(t *testing.T) {
	c := New()
	p := phone()
	if err := c.Add(p, 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// A later catalog edit must not reach the open cart.
	p.Name = "renamed"
	p.UnitPriceCents = 1

	line := c.Lines()[0]
	if line.NameSnapshot != "iPhone 15" || line.UnitPriceCents != 7990000 {
		t.Fatalf("snapshot changed: %+v", line)
	}
}

func TestRemoveByIndex(t *testing.T) {
	c := New()
	_ = c.Add(phone(), 1)
	_ = c.Add(cola(), 2)

	if err := c.Remove(0); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	lines := c.Lines()
	if len(lines) != 1 || lines[0].ProductID != "prod-2" {
		t.Fatalf("unexpected lines after remove: %+v", lines)
	}

	for _, idx := range []int{-1, 1, 99} {
		if err := c.Remove(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("index %d: expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}
}

func TestSubtotal(t *testing.T) {
	c := New()
	if c.Subtotal() != 0 {
		t.Fatalf("empty cart subtotal should be 0, got %d", c.Subtotal())
	}

	_ = c.Add(phone(), 2)
	_ = c.Add(cola(), 5)

	// 79900.00*2 + 40.00*5 = 160000.00
	if got := c.Subtotal(); got != 16000000 {
		t.Fatalf("expected subtotal 16000000, got %d", got)
	}
}

func TestClear(t *testing.T) {
	c := New()
	_ = c.Add(phone(), 1)
	c.Clear()
	if c.Len() != 0 || c.Subtotal() != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	c := New()
	_ = c.Add(phone(), 1)

	lines := c.Lines()
	lines[0].Qty = 99

	if c.Lines()[0].Qty != 1 {
		t.Fatalf("mutating the returned slice must not change the cart")
	}
}
