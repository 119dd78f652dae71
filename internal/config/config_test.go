package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadFallbacks(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SUGGESTION_TTL_SECONDS", "not-a-number")
	t.Setenv("LOW_STOCK_THRESHOLD", "-5")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %q", cfg.Address())
	}
	if cfg.SuggestionTTLSeconds != 20 {
		t.Fatalf("expected suggestion TTL fallback 20, got %d", cfg.SuggestionTTLSeconds)
	}
	if cfg.LowStockThreshold != 20 {
		t.Fatalf("expected low stock threshold fallback 20, got %d", cfg.LowStockThreshold)
	}
}
