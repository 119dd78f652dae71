package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/store"
)

func TestCreateSaleDecrementsStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("SWIFTSALE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SWIFTSALE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, unit_price_cents, stock, created_at, updated_at)
		VALUES ($1, 'Sale IT Widget', 'Electronics', 7990000, 20, now(), now())
	`, productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	sale := domain.Sale{
		ID:              saleID,
		SubtotalCents:   15980000,
		TotalCents:      14382000,
		DiscountPercent: 10,
		Items: []domain.SaleItem{
			{ProductID: productID, NameSnapshot: "Sale IT Widget", Qty: 2, UnitPriceCents: 7990000},
		},
		Payments: []domain.Payment{
			{Method: domain.PaymentMethodCash, AmountCents: 14382000},
		},
	}
	committed, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if committed.ReceiptRef != "/bill/"+saleID {
		t.Fatalf("expected receipt ref /bill/%s, got %s", saleID, committed.ReceiptRef)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 18 {
		t.Fatalf("expected stock 18 after sale, got %d", stock)
	}

	// A second sale that exceeds remaining stock must fail and leave the
	// committed state untouched.
	oversell := domain.Sale{
		SubtotalCents: 7990000 * 25,
		TotalCents:    7990000 * 25,
		Items: []domain.SaleItem{
			{ProductID: productID, NameSnapshot: "Sale IT Widget", Qty: 25, UnitPriceCents: 7990000},
		},
	}
	if _, err := s.CreateSale(ctx, oversell); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock after failed sale: %v", err)
	}
	if stock != 18 {
		t.Fatalf("expected stock unchanged at 18 after failed sale, got %d", stock)
	}

	// Repeated lines for the same product must be checked as one summed
	// quantity, not per line.
	repeated := domain.Sale{
		SubtotalCents: 7990000 * 20,
		TotalCents:    7990000 * 20,
		Items: []domain.SaleItem{
			{ProductID: productID, NameSnapshot: "Sale IT Widget", Qty: 10, UnitPriceCents: 7990000},
			{ProductID: productID, NameSnapshot: "Sale IT Widget", Qty: 10, UnitPriceCents: 7990000},
		},
	}
	if _, err := s.CreateSale(ctx, repeated); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for summed oversell, got %v", err)
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock after repeated-line sale: %v", err)
	}
	if stock != 18 {
		t.Fatalf("expected stock unchanged at 18 after repeated-line oversell, got %d", stock)
	}

	loaded, err := s.GetSaleByID(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(loaded.Items) != 1 || len(loaded.Payments) != 1 {
		t.Fatalf("expected 1 item and 1 payment, got %d items %d payments", len(loaded.Items), len(loaded.Payments))
	}
	if loaded.OutstandingCents() != 0 {
		t.Fatalf("expected fully paid sale, outstanding %d", loaded.OutstandingCents())
	}
}
