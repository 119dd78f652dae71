package suggest

import (
	"context"
	"testing"

	"swiftsale/backend/internal/domain"
)

func testCatalog() []domain.Product {
	return []domain.Product{
		{ID: "prod-1", Name: "Coca Cola 500ml", Category: "Beverages", UnitPriceCents: 4000, Stock: 200},
		{ID: "prod-2", Name: "Pepsi 500ml", Category: "Beverages", UnitPriceCents: 4000, Stock: 180},
		{ID: "prod-3", Name: "Colgate MaxFresh", Category: "Personal Care", UnitPriceCents: 9000, Stock: 80},
		{ID: "prod-4", Name: "iPhone 15", Category: "Electronics", UnitPriceCents: 7990000, Stock: 20},
	}
}

func TestSuggestMatchesNameFragments(t *testing.T) {
	engine := NewEngine(nil, 0)

	resp := engine.Suggest(context.Background(), domain.SuggestionRequest{Query: "col"}, testCatalog(), nil)
	if len(resp.Suggestions) != 2 {
		t.Fatalf("expected 2 matches for 'col', got %d (%+v)", len(resp.Suggestions), resp.Suggestions)
	}
	for _, s := range resp.Suggestions {
		if s.ProductID != "prod-1" && s.ProductID != "prod-3" {
			t.Fatalf("unexpected suggestion %+v", s)
		}
	}
}

func TestSuggestShortQueryReturnsNothing(t *testing.T) {
	engine := NewEngine(nil, 0)

	resp := engine.Suggest(context.Background(), domain.SuggestionRequest{Query: "c"}, testCatalog(), nil)
	if len(resp.Suggestions) != 0 {
		t.Fatalf("expected no suggestions for single-character query, got %d", len(resp.Suggestions))
	}
}

func TestSuggestPopularityBreaksTies(t *testing.T) {
	engine := NewEngine(nil, 0)
	sold := map[string]int64{"prod-2": 120}

	resp := engine.Suggest(context.Background(), domain.SuggestionRequest{Query: "500ml"}, testCatalog(), sold)
	if len(resp.Suggestions) < 2 {
		t.Fatalf("expected both sodas, got %+v", resp.Suggestions)
	}
	if resp.Suggestions[0].ProductID != "prod-2" {
		t.Fatalf("expected popular product first, got %s", resp.Suggestions[0].ProductID)
	}
}

func TestSuggestHonorsLimit(t *testing.T) {
	engine := NewEngine(nil, 0)

	resp := engine.Suggest(context.Background(), domain.SuggestionRequest{Query: "500ml", Limit: 1}, testCatalog(), nil)
	if len(resp.Suggestions) != 1 {
		t.Fatalf("expected limit 1 to cap results, got %d", len(resp.Suggestions))
	}
}

func TestMatchScoreOrdering(t *testing.T) {
	prefix := matchScore("coca cola 500ml", "coca")
	wordPrefix := matchScore("coca cola 500ml", "cola")
	substring := matchScore("coca cola 500ml", "la 50")
	miss := matchScore("coca cola 500ml", "sprite")

	if !(prefix > wordPrefix && wordPrefix > substring && substring > miss) {
		t.Fatalf("score ordering broken: prefix=%v wordPrefix=%v substring=%v miss=%v", prefix, wordPrefix, substring, miss)
	}
	if miss != 0 {
		t.Fatalf("non-matching query must score zero, got %v", miss)
	}
}
