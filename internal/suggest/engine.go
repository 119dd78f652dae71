// Package suggest ranks catalog products against a partial search query for
// the cashier's autocomplete box.
package suggest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"swiftsale/backend/internal/cache"
	"swiftsale/backend/internal/domain"
)

const defaultLimit = 5

type Engine struct {
	cache    cache.SuggestionCache
	cacheTTL time.Duration
	minScore float64
}

func NewEngine(cacheStore cache.SuggestionCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSuggestionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		minScore: 0.20,
	}
}

// Suggest scores every candidate product against the query and returns the
// best matches. unitsSold feeds a popularity signal so frequently sold items
// surface first among equal name matches.
func (e *Engine) Suggest(
	ctx context.Context,
	req domain.SuggestionRequest,
	products []domain.Product,
	unitsSold map[string]int64,
) domain.SuggestionResponse {
	startedAt := time.Now()

	query := strings.ToLower(strings.TrimSpace(req.Query))
	if len(query) < 2 {
		return domain.SuggestionResponse{LatencyMS: time.Since(startedAt).Milliseconds()}
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	cacheKey := buildCacheKey(query, limit)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		cached.LatencyMS = time.Since(startedAt).Milliseconds()
		return *cached
	}

	scored := make([]domain.Suggestion, 0, limit)
	for _, product := range products {
		match := matchScore(strings.ToLower(product.Name), query)
		if match == 0 {
			continue
		}

		popularity := clamp(float64(unitsSold[product.ID])/50.0, 0, 1)
		stockScore := clamp(float64(product.Stock)/90.0, 0, 1)

		score := 0.55*match + 0.25*popularity + 0.20*stockScore
		if score < e.minScore {
			continue
		}

		scored = append(scored, domain.Suggestion{
			ProductID:      product.ID,
			Name:           product.Name,
			Category:       product.Category,
			UnitPriceCents: product.UnitPriceCents,
			Stock:          product.Stock,
			Score:          round2(score),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	resp := domain.SuggestionResponse{
		Suggestions: scored,
		LatencyMS:   time.Since(startedAt).Milliseconds(),
	}
	_ = e.cache.Set(ctx, cacheKey, &resp, e.cacheTTL)
	return resp
}

// matchScore grades how well a lowercase product name matches the query:
// full prefix beats word prefix beats substring; no match scores zero.
func matchScore(name string, query string) float64 {
	switch {
	case name == query:
		return 1.0
	case strings.HasPrefix(name, query):
		return 0.95
	}
	for _, word := range strings.Fields(name) {
		if strings.HasPrefix(word, query) {
			return 0.85
		}
	}
	if strings.Contains(name, query) {
		return 0.70
	}
	return 0
}

func buildCacheKey(query string, limit int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("%s|%d", query, limit)))
	return "pos:suggest:" + hex.EncodeToString(hash[:])
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return float64(int(val*100+0.5)) / 100
}
