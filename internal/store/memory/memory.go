package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/store"
	"swiftsale/backend/internal/xid"
)

// Store is the in-memory Repository used in dev mode and tests. A single
// mutex serializes commits, which gives the same atomic check-then-decrement
// the SQL store gets from serializable transactions and row locks.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	customers       map[string]domain.Customer
	salesByID       map[string]*domain.Sale
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// New returns an empty store with only the seed user accounts. Reporting
// queries over it exercise the empty-table paths.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		customers:       make(map[string]domain.Customer),
		salesByID:       make(map[string]*domain.Sale),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a demo catalog and customer
// directory matching the shipped SwiftSale dataset.
func NewSeeded() *Store {
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-iphone15", Name: "iPhone 15", Category: "Electronics", UnitPriceCents: 7990000, Stock: 20},
		{ID: "prod-macbookair", Name: "MacBook Air M3", Category: "Electronics", UnitPriceCents: 11490000, Stock: 10},
		{ID: "prod-ipadpro", Name: "iPad Pro 11\"", Category: "Electronics", UnitPriceCents: 8190000, Stock: 15},
		{ID: "prod-watchs9", Name: "Apple Watch Series 9", Category: "Electronics", UnitPriceCents: 4190000, Stock: 25},
		{ID: "prod-sonyxm5", Name: "Sony WH-1000XM5", Category: "Electronics", UnitPriceCents: 2999000, Stock: 30},
		{ID: "prod-cocacola", Name: "Coca Cola 500ml", Category: "Beverages", UnitPriceCents: 4000, Stock: 200},
		{ID: "prod-pepsi", Name: "Pepsi 500ml", Category: "Beverages", UnitPriceCents: 4000, Stock: 180},
		{ID: "prod-redbull", Name: "Red Bull", Category: "Beverages", UnitPriceCents: 12500, Stock: 100},
		{ID: "prod-bisleri", Name: "Bisleri Water 1L", Category: "Beverages", UnitPriceCents: 2000, Stock: 500},
		{ID: "prod-lays", Name: "Lays Classic Salted", Category: "Snacks", UnitPriceCents: 2000, Stock: 200},
		{ID: "prod-maggi", Name: "Maggi 2-Minute", Category: "Snacks", UnitPriceCents: 1400, Stock: 300},
		{ID: "prod-oreo", Name: "Oreo Biscuits", Category: "Snacks", UnitPriceCents: 3500, Stock: 120},
		{ID: "prod-kitkat", Name: "KitKat 4-Finger", Category: "Snacks", UnitPriceCents: 3000, Stock: 220},
		{ID: "prod-tatasalt", Name: "Tata Salt 1kg", Category: "Grocery", UnitPriceCents: 2800, Stock: 100},
		{ID: "prod-atta", Name: "Aashirvaad Atta 5kg", Category: "Grocery", UnitPriceCents: 24000, Stock: 50},
		{ID: "prod-basmati", Name: "India Gate Basmati", Category: "Grocery", UnitPriceCents: 65000, Stock: 40},
		{ID: "prod-dovesoap", Name: "Dove Soap 3-Pack", Category: "Personal Care", UnitPriceCents: 14000, Stock: 60},
		{ID: "prod-colgate", Name: "Colgate MaxFresh", Category: "Personal Care", UnitPriceCents: 9000, Stock: 80},
		{ID: "prod-notebook", Name: "Classmate Notebook", Category: "Stationery", UnitPriceCents: 6000, Stock: 150},
		{ID: "prod-pilotv5", Name: "Pilot V5 Pen", Category: "Stationery", UnitPriceCents: 5000, Stock: 200},
		{ID: "prod-surfexcel", Name: "Surf Excel 1kg", Category: "Household", UnitPriceCents: 16000, Stock: 60},
		{ID: "prod-harpic", Name: "Harpic Cleaner", Category: "Household", UnitPriceCents: 9500, Stock: 55},
	}

	customers := []domain.Customer{
		{ID: "cust-1", Name: "Aarav Sharma", Phone: "+91 9812 45012", Email: "aarav.sharma@gmail.com"},
		{ID: "cust-2", Name: "Riya Gupta", Phone: "+91 7420 883321", Email: "riya.gupta@gmail.com"},
		{ID: "cust-3", Name: "Vikram Singh", Phone: "+91 6301 55678", Email: "vikram.singh@gmail.com"},
		{ID: "cust-4", Name: "Ananya Iyer", Phone: "+91 9974 10233", Email: "ananya.iyer@gmail.com"},
		{ID: "cust-5", Name: "Deepak Mehta", Phone: "+91 8450 77641", Email: "deepak.mehta@gmail.com"},
	}

	s := New()
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	for _, c := range customers {
		c.CreatedAt = now
		s.customers[c.ID] = c
	}
	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.UnitPriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidSale
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.UnitPriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := product
	return &found, nil
}

func (s *Store) FindProductsByName(_ context.Context, query string, limit int) ([]domain.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Product, 0, limit)
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), query) {
			matches = append(matches, p)
		}
	}
	slices.SortFunc(matches, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Store) UnitsSoldByProduct(_ context.Context, productIDs []string) (map[string]int64, error) {
	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[string]int64, len(productIDs))
	for _, sale := range s.salesByID {
		for _, item := range sale.Items {
			if len(wanted) > 0 {
				if _, ok := wanted[item.ProductID]; !ok {
					continue
				}
			}
			sold[item.ProductID] += int64(item.Qty)
		}
	}
	return sold, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidSale
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrInvalidSale
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) FindCustomer(_ context.Context, query string) (*domain.Customer, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, store.ErrNotFound
	}

	customers, _ := s.ListCustomers(context.Background())
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(c.Phone, query) {
			found := c
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// CreateSale commits the sale atomically: the summed quantity of every line
// is checked against live stock before any mutation, so a failed check leaves
// products, sales, and payments exactly as they were.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidSale
	}
	if sale.TotalCents < 0 || sale.SubtotalCents < 0 {
		return nil, store.ErrInvariant
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.CustomerID != "" {
		if _, exists := s.customers[sale.CustomerID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	// Aggregate requested quantity per product so repeated lines for the same
	// product are checked against live stock as one total, then validate
	// everything before touching anything.
	needed := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidSale
		}
		needed[item.ProductID] += item.Qty
	}
	for id, qty := range needed {
		product, exists := s.products[id]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.Stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	for id, qty := range needed {
		product := s.products[id]
		product.Stock -= qty
		product.UpdatedAt = time.Now().UTC()
		s.products[id] = product
	}

	sale.ReceiptRef = "/bill/" + sale.ID
	for i := range sale.Payments {
		if sale.Payments[i].ID == "" {
			sale.Payments[i].ID = xid.New("pay")
		}
		sale.Payments[i].SaleID = sale.ID
		if sale.Payments[i].CreatedAt.IsZero() {
			sale.Payments[i].CreatedAt = sale.CreatedAt
		}
	}

	stored := cloneSale(sale)
	s.salesByID[sale.ID] = &stored
	committed := cloneSale(sale)
	return &committed, nil
}

func (s *Store) GetSaleByID(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneSale(*sale)
	return &found, nil
}

func (s *Store) AddPayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.AmountCents < 1 {
		return nil, store.ErrInvalidSale
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[payment.SaleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if payment.AmountCents > sale.OutstandingCents() {
		return nil, store.ErrInvalidSale
	}
	sale.Payments = append(sale.Payments, payment)
	created := payment
	return &created, nil
}

func (s *Store) DeleteSale(_ context.Context, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[saleID]; !exists {
		return store.ErrNotFound
	}
	// Items and payments live on the sale record, so the cascade is implicit.
	delete(s.salesByID, saleID)
	return nil
}

func (s *Store) PaymentMethodBreakdown(_ context.Context) ([]domain.PaymentMethodSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := make(map[string]*domain.PaymentMethodSummary)
	for _, sale := range s.salesByID {
		for _, payment := range sale.Payments {
			entry, ok := byMethod[payment.Method]
			if !ok {
				entry = &domain.PaymentMethodSummary{Method: payment.Method}
				byMethod[payment.Method] = entry
			}
			entry.AmountCents += payment.AmountCents
			entry.Count++
		}
	}

	result := make([]domain.PaymentMethodSummary, 0, len(byMethod))
	for _, entry := range byMethod {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.PaymentMethodSummary) int {
		return strings.Compare(a.Method, b.Method)
	})
	return result, nil
}

func (s *Store) SalesByCategory(_ context.Context) ([]domain.CategorySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory := make(map[string]int64)
	for _, sale := range s.salesByID {
		for _, item := range sale.Items {
			category := "Uncategorized"
			if product, exists := s.products[item.ProductID]; exists {
				category = product.Category
			}
			byCategory[category] += int64(item.Qty) * item.UnitPriceCents
		}
	}

	result := make([]domain.CategorySales, 0, len(byCategory))
	for category, amount := range byCategory {
		result = append(result, domain.CategorySales{Category: category, AmountCents: amount})
	}
	slices.SortFunc(result, func(a, b domain.CategorySales) int {
		return strings.Compare(a.Category, b.Category)
	})
	return result, nil
}

func (s *Store) TopProducts(_ context.Context, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*domain.ProductSales)
	for _, sale := range s.salesByID {
		for _, item := range sale.Items {
			entry, ok := byName[item.NameSnapshot]
			if !ok {
				entry = &domain.ProductSales{Name: item.NameSnapshot}
				byName[item.NameSnapshot] = entry
			}
			entry.Qty += int64(item.Qty)
			entry.AmountCents += int64(item.Qty) * item.UnitPriceCents
		}
	}

	result := make([]domain.ProductSales, 0, len(byName))
	for _, entry := range byName {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Qty != result[j].Qty {
			return result[i].Qty > result[j].Qty
		}
		return result[i].Name < result[j].Name
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DailySales(_ context.Context, from time.Time, to time.Time) ([]domain.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := make(map[string]*domain.DailySales)
	for _, sale := range s.salesByID {
		at := sale.CreatedAt.UTC()
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && !at.Before(to) {
			continue
		}
		date := at.Format("2006-01-02")
		entry, ok := byDate[date]
		if !ok {
			entry = &domain.DailySales{Date: date}
			byDate[date] = entry
		}
		entry.SaleCount++
		entry.AmountCents += sale.TotalCents
	}

	result := make([]domain.DailySales, 0, len(byDate))
	for _, entry := range byDate {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.DailySales) int {
		return strings.Compare(a.Date, b.Date)
	})
	return result, nil
}

func (s *Store) DashboardSummary(_ context.Context, lowStockThreshold int, now time.Time) (*domain.DashboardSummary, error) {
	if lowStockThreshold < 1 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}
	now = now.UTC()
	today := now.Format("2006-01-02")
	month := now.Format("2006-01")

	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DashboardSummary{}
	totalSales := int64(0)
	totalPaid := int64(0)
	soldByName := make(map[string]int64)

	for _, sale := range s.salesByID {
		at := sale.CreatedAt.UTC()
		if at.Format("2006-01-02") == today {
			summary.TodayCents += sale.TotalCents
		}
		if at.Format("2006-01") == month {
			summary.MonthCents += sale.TotalCents
		}
		totalSales += sale.TotalCents
		for _, payment := range sale.Payments {
			totalPaid += payment.AmountCents
		}
		for _, item := range sale.Items {
			soldByName[item.NameSnapshot] += int64(item.Qty)
		}
	}

	for _, product := range s.products {
		if product.Stock < lowStockThreshold {
			summary.LowStockCount++
		}
	}

	if dues := totalSales - totalPaid; dues > 0 {
		summary.PendingDuesCents = dues
	}

	bestQty := int64(0)
	for name, qty := range soldByName {
		if qty > bestQty || (qty == bestQty && name < summary.TopProductName) {
			bestQty = qty
			summary.TopProductName = name
		}
	}

	return &summary, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.auditLogs[i]
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidSale
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Items = make([]domain.SaleItem, len(sale.Items))
	copy(cloned.Items, sale.Items)
	cloned.Payments = make([]domain.Payment, len(sale.Payments))
	copy(cloned.Payments, sale.Payments)
	return cloned
}
