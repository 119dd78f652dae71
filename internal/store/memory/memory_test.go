package memory

import (
	"context"
	"errors"
	"testing"

	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/store"
)

func TestCreateSaleSumsRepeatedProductLines(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// Two lines of 15 against stock 20: each line passes in isolation but
	// their sum does not, so the whole commit must abort untouched.
	oversell := domain.Sale{
		SubtotalCents: 7990000 * 30,
		TotalCents:    7990000 * 30,
		Items: []domain.SaleItem{
			{ProductID: "prod-iphone15", NameSnapshot: "iPhone 15", Qty: 15, UnitPriceCents: 7990000},
			{ProductID: "prod-iphone15", NameSnapshot: "iPhone 15", Qty: 15, UnitPriceCents: 7990000},
		},
	}
	if _, err := s.CreateSale(ctx, oversell); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for summed oversell, got %v", err)
	}
	phone, err := s.GetProductByID(ctx, "prod-iphone15")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if phone.Stock != 20 {
		t.Fatalf("expected stock untouched at 20, got %d", phone.Stock)
	}

	// When the summed quantity fits, repeated lines commit and decrement once
	// by the total.
	split := domain.Sale{
		SubtotalCents: 7990000 * 12,
		TotalCents:    7990000 * 12,
		Items: []domain.SaleItem{
			{ProductID: "prod-iphone15", NameSnapshot: "iPhone 15", Qty: 7, UnitPriceCents: 7990000},
			{ProductID: "prod-iphone15", NameSnapshot: "iPhone 15", Qty: 5, UnitPriceCents: 7990000},
		},
	}
	if _, err := s.CreateSale(ctx, split); err != nil {
		t.Fatalf("create sale with repeated lines: %v", err)
	}
	phone, err = s.GetProductByID(ctx, "prod-iphone15")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if phone.Stock != 8 {
		t.Fatalf("expected stock 8 after summed decrement, got %d", phone.Stock)
	}
}

func TestCreateCustomerRejectsDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateCustomer(ctx, domain.Customer{ID: "cust-dup", Name: "Aarav Sharma"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: "cust-dup", Name: "Someone Else"}); !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale for duplicate id, got %v", err)
	}

	kept, err := s.FindCustomer(ctx, "aarav")
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if kept.ID != first.ID || kept.Name != "Aarav Sharma" {
		t.Fatalf("existing customer was overwritten: %+v", kept)
	}
}
