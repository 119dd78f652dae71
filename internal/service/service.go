package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"swiftsale/backend/internal/cart"
	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/store"
	"swiftsale/backend/internal/suggest"
	"swiftsale/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// allowedDiscountPercents is the fixed set of checkout discount rates.
var allowedDiscountPercents = map[int]bool{0: true, 5: true, 10: true, 15: true}

type Service struct {
	repo      store.Repository
	suggester *suggest.Engine

	mu    sync.Mutex
	carts map[string]*cart.Cart

	lowStockThreshold int
}

func New(repo store.Repository, suggester *suggest.Engine, lowStockThreshold int) *Service {
	if lowStockThreshold < 1 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}

	return &Service{
		repo:              repo,
		suggester:         suggester,
		carts:             make(map[string]*cart.Cart),
		lowStockThreshold: lowStockThreshold,
	}
}

func (s *Service) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, category)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.UnitPriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:           req.Name,
		Category:       req.Category,
		UnitPriceCents: req.UnitPriceCents,
		Stock:          req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.UnitPriceCents, created.Stock))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidSale
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Category = category
	}
	if req.UnitPriceCents != nil {
		if *req.UnitPriceCents < 1 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.UnitPriceCents = *req.UnitPriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidSale
		}
		updated.Stock = *req.Stock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%d,stock=%d", saved.UnitPriceCents, saved.Stock))

	return *saved, nil
}

func (s *Service) SuggestProducts(ctx context.Context, req domain.SuggestionRequest) (domain.SuggestionResponse, error) {
	products, err := s.repo.FindProductsByName(ctx, req.Query, 50)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	unitsSold, err := s.repo.UnitsSoldByProduct(ctx, ids)
	if err != nil {
		return domain.SuggestionResponse{}, err
	}

	return s.suggester.Suggest(ctx, req, products, unitsSold), nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidSale
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  req.Name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, created.Name)

	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) LookupCustomer(ctx context.Context, query string) (domain.Customer, error) {
	found, err := s.repo.FindCustomer(ctx, query)
	if err != nil {
		return domain.Customer{}, err
	}
	return *found, nil
}

// OpenCart creates an empty cart and returns its id. Carts are session-scoped
// and live in memory; they are never persisted.
func (s *Service) OpenCart(_ context.Context) string {
	id := xid.New("cart")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[id] = cart.New()
	return id
}

func (s *Service) getCart(cartID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.carts[cartID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *Service) GetCart(_ context.Context, cartID string) (domain.CartResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	return cartResponse(cartID, c), nil
}

// AddCartItem resolves the product reference (exact id, else name match that
// must be unique) and merges the quantity into the cart.
func (s *Service) AddCartItem(ctx context.Context, cartID string, req domain.CartAddRequest) (domain.CartResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.CartResponse{}, err
	}

	product, err := s.resolveProduct(ctx, req.Product)
	if err != nil {
		return domain.CartResponse{}, err
	}

	if err := c.Add(*product, req.Qty); err != nil {
		return domain.CartResponse{}, err
	}
	return cartResponse(cartID, c), nil
}

func (s *Service) resolveProduct(ctx context.Context, ref string) (*domain.Product, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, store.ErrNotFound
	}

	product, err := s.repo.GetProductByID(ctx, ref)
	if err == nil {
		return product, nil
	}
	// Only an unknown id falls through to name resolution; store failures
	// stay retryable.
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	matches, err := s.repo.FindProductsByName(ctx, ref, 10)
	if err != nil {
		return nil, err
	}

	// An exact case-insensitive name match wins over fragment matches.
	exact := make([]domain.Product, 0, 1)
	for _, p := range matches {
		if strings.EqualFold(p.Name, ref) {
			exact = append(exact, p)
		}
	}
	if len(exact) == 1 {
		found := exact[0]
		return &found, nil
	}

	switch len(matches) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		found := matches[0]
		return &found, nil
	default:
		return nil, store.ErrAmbiguousProduct
	}
}

func (s *Service) RemoveCartItem(_ context.Context, cartID string, index int) (domain.CartResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	if err := c.Remove(index); err != nil {
		return domain.CartResponse{}, err
	}
	return cartResponse(cartID, c), nil
}

func (s *Service) ClearCart(_ context.Context, cartID string) (domain.CartResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	c.Clear()
	return cartResponse(cartID, c), nil
}

// ApplyDiscount computes the amount due after the percent discount, rounding
// half up on the cent. Only the fixed rate set is accepted.
func ApplyDiscount(subtotalCents int64, discountPercent int) (int64, error) {
	if subtotalCents < 0 {
		return 0, store.ErrInvariant
	}
	if !allowedDiscountPercents[discountPercent] {
		return 0, store.ErrInvalidSale
	}
	return (subtotalCents*int64(100-discountPercent) + 50) / 100, nil
}

func (s *Service) Quote(_ context.Context, cartID string, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	subtotal := c.Subtotal()
	due, err := ApplyDiscount(subtotal, req.DiscountPercent)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	return domain.QuoteResponse{
		SubtotalCents:   subtotal,
		DiscountPercent: req.DiscountPercent,
		DueCents:        due,
	}, nil
}

// Checkout commits the cart as a durable sale. On success the cart is
// cleared; on any failure the cart and the store are left untouched.
func (s *Service) Checkout(ctx context.Context, cartID string, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	c, err := s.getCart(cartID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	if c.Len() == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidSale
	}

	if !validPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, store.ErrInvalidSale
	}

	subtotal := c.Subtotal()
	due, err := ApplyDiscount(subtotal, req.DiscountPercent)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	amount := req.AmountCents
	if amount == 0 {
		amount = due
	}
	if amount < 0 || amount > due {
		return domain.CheckoutResponse{}, store.ErrInvalidSale
	}

	items := make([]domain.SaleItem, 0, c.Len())
	for _, line := range c.Lines() {
		items = append(items, domain.SaleItem{
			ProductID:      line.ProductID,
			NameSnapshot:   line.NameSnapshot,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	sale := domain.Sale{
		ID:              xid.New("sale"),
		CreatedAt:       time.Now().UTC(),
		SubtotalCents:   subtotal,
		DiscountPercent: req.DiscountPercent,
		TotalCents:      due,
		CustomerID:      strings.TrimSpace(req.CustomerID),
		Items:           items,
	}
	if amount > 0 {
		sale.Payments = []domain.Payment{{
			Method:      req.PaymentMethod,
			Reference:   strings.TrimSpace(req.PaymentReference),
			AmountCents: amount,
		}}
	}

	committed, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	c.Clear()

	s.logAudit(ctx, "sale_commit", "sale", committed.ID, fmt.Sprintf("subtotal=%d,discount=%d,total=%d", committed.SubtotalCents, committed.DiscountPercent, committed.TotalCents))

	return domain.CheckoutResponse{
		Sale:             *committed,
		OutstandingCents: committed.OutstandingCents(),
	}, nil
}

func (s *Service) AddPayment(ctx context.Context, saleID string, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	if !validPaymentMethod(req.Method) {
		return domain.PaymentResponse{}, store.ErrInvalidSale
	}
	if req.AmountCents < 1 {
		return domain.PaymentResponse{}, store.ErrInvalidSale
	}

	payment, err := s.repo.AddPayment(ctx, domain.Payment{
		SaleID:      saleID,
		Method:      req.Method,
		Reference:   strings.TrimSpace(req.Reference),
		AmountCents: req.AmountCents,
	})
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	s.logAudit(ctx, "payment_add", "sale", saleID, fmt.Sprintf("method=%s,amount=%d", payment.Method, payment.AmountCents))

	return domain.PaymentResponse{
		Payment:          *payment,
		OutstandingCents: sale.OutstandingCents(),
	}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) GetReceipt(ctx context.Context, saleID string) (domain.Receipt, error) {
	sale, err := s.repo.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{
		SaleID:     sale.ID,
		CreatedAt:  sale.CreatedAt,
		TotalCents: sale.TotalCents,
		Items:      sale.Items,
	}, nil
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteSale(ctx, saleID); err != nil {
		return err
	}

	s.logAudit(ctx, "sale_delete", "sale", saleID, "")
	return nil
}

func (s *Service) PaymentMethodBreakdown(ctx context.Context) ([]domain.PaymentMethodSummary, error) {
	return s.repo.PaymentMethodBreakdown(ctx)
}

func (s *Service) SalesByCategory(ctx context.Context) ([]domain.CategorySales, error) {
	return s.repo.SalesByCategory(ctx)
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	return s.repo.TopProducts(ctx, limit)
}

func (s *Service) DailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySales, error) {
	return s.repo.DailySales(ctx, from, to)
}

// DailyReport aggregates one calendar day for export or printing. SaleCount
// and GrossCents cover the requested day only; ByPayment and TopProducts
// summarize all committed sales, the running figures the register prints
// alongside the day.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	daily, err := s.repo.DailySales(ctx, start, end)
	if err != nil {
		return domain.DailyReport{}, err
	}
	byPayment, err := s.repo.PaymentMethodBreakdown(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}
	top, err := s.repo.TopProducts(ctx, 5)
	if err != nil {
		return domain.DailyReport{}, err
	}

	report := domain.DailyReport{
		Date:        start.Format("2006-01-02"),
		ByPayment:   byPayment,
		TopProducts: top,
	}
	for _, entry := range daily {
		if entry.Date == report.Date {
			report.SaleCount = entry.SaleCount
			report.GrossCents = entry.AmountCents
		}
	}
	return report, nil
}

func (s *Service) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	summary, err := s.repo.DashboardSummary(ctx, s.lowStockThreshold, time.Now().UTC())
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	return *summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func validPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodUPI:
		return true
	}
	return false
}

func cartResponse(cartID string, c *cart.Cart) domain.CartResponse {
	return domain.CartResponse{
		CartID:        cartID,
		Lines:         c.Lines(),
		SubtotalCents: c.Subtotal(),
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Actor:      actor.Username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
