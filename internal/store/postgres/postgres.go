package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/store"
	"swiftsale/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	query := `
		SELECT id, name, category, unit_price_cents, stock, created_at, updated_at
		FROM products
	`
	args := []any{}
	if category != "" {
		query += ` WHERE lower(category) = lower($1)`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.UnitPriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, unit_price_cents, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.Name, product.Category, product.UnitPriceCents, product.Stock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSale
		}
		return nil, mapError(err)
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.UnitPriceCents < 0 || product.Stock < 0 {
		return nil, store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, unit_price_cents = $4, stock = $5, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.UnitPriceCents, product.Stock)
	if err != nil {
		return nil, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, unit_price_cents, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.UnitPriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &p, nil
}

func (s *Store) FindProductsByName(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, unit_price_cents, stock, created_at, updated_at
		FROM products
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UnitsSoldByProduct(ctx context.Context, productIDs []string) (map[string]int64, error) {
	sold := make(map[string]int64, len(productIDs))
	if len(productIDs) == 0 {
		return sold, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, COALESCE(SUM(qty), 0)
		FROM sale_items
		WHERE product_id = ANY($1)
		GROUP BY product_id
	`, productIDs)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		sold[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidSale
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	customer.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSale
		}
		return nil, mapError(err)
	}

	created := customer
	return &created, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) FindCustomer(ctx context.Context, query string) (*domain.Customer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, store.ErrNotFound
	}

	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), created_at
		FROM customers
		WHERE name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT 1
	`, query).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	return &c, nil
}

// CreateSale commits the sale atomically. All referenced product rows are
// locked first, every line is checked against live stock, and only then are
// the decrement, sale, item, and payment writes issued. Any failure rolls the
// whole transaction back. Serializable isolation plus the row locks mean two
// concurrent commits against the same product can never both pass the stock
// check.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidSale
	}
	if sale.SubtotalCents < 0 || sale.TotalCents < 0 {
		return nil, store.ErrInvariant
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	// Aggregate requested quantity per product so repeated lines for the same
	// product are checked against live stock as one total.
	needed := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrInvalidSale
		}
		needed[item.ProductID] += item.Qty
	}
	ids := make([]string, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}

	stockRows, err := pgTx.QueryContext(ctx, `
		SELECT id, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, mapError(err)
	}
	stockMap := make(map[string]int, len(ids))
	for stockRows.Next() {
		var id string
		var stock int
		if err := stockRows.Scan(&id, &stock); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[id] = stock
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	for id, qty := range needed {
		stock, exists := stockMap[id]
		if !exists {
			return nil, store.ErrNotFound
		}
		if stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	for id, qty := range needed {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2
		`, qty, id)
		if err != nil {
			return nil, mapError(err)
		}
	}

	sale.ReceiptRef = "/bill/" + sale.ID
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, subtotal_cents, discount_percent, total_cents, receipt_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,'',$6)
	`, sale.ID, nullIfEmpty(sale.CustomerID), sale.SubtotalCents, sale.DiscountPercent, sale.TotalCents, sale.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}

	// The receipt locator embeds the sale id, so it is backfilled as a second
	// statement inside the same transaction.
	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales SET receipt_ref = $2 WHERE id = $1
	`, sale.ID, sale.ReceiptRef)
	if err != nil {
		return nil, mapError(err)
	}

	for _, item := range sale.Items {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, name_snapshot, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, item.ProductID, item.NameSnapshot, item.Qty, item.UnitPriceCents)
		if err != nil {
			return nil, mapError(err)
		}
	}

	for i := range sale.Payments {
		payment := &sale.Payments[i]
		if payment.ID == "" {
			payment.ID = xid.New("pay")
		}
		payment.SaleID = sale.ID
		if payment.CreatedAt.IsZero() {
			payment.CreatedAt = sale.CreatedAt
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO payments (id, sale_id, method, reference, amount_cents, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, payment.ID, payment.SaleID, payment.Method, nullIfEmpty(payment.Reference), payment.AmountCents, payment.CreatedAt)
		if err != nil {
			return nil, mapError(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, mapError(err)
	}

	committed := sale
	return &committed, nil
}

func (s *Store) GetSaleByID(ctx context.Context, saleID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), subtotal_cents, discount_percent, total_cents, receipt_ref, created_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.CustomerID, &sale.SubtotalCents, &sale.DiscountPercent, &sale.TotalCents, &sale.ReceiptRef, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name_snapshot, qty, unit_price_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY name_snapshot
	`, saleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.ProductID, &item.NameSnapshot, &item.Qty, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	payRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, method, COALESCE(reference, ''), amount_cents, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, saleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var payment domain.Payment
		if err := payRows.Scan(&payment.ID, &payment.SaleID, &payment.Method, &payment.Reference, &payment.AmountCents, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payment.CreatedAt = payment.CreatedAt.UTC()
		sale.Payments = append(sale.Payments, payment)
	}
	if err := payRows.Err(); err != nil {
		return nil, err
	}

	return &sale, nil
}

// AddPayment appends a payment while the sale row is locked, so concurrent
// payments cannot jointly exceed the sale's outstanding balance.
func (s *Store) AddPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.AmountCents < 1 {
		return nil, store.ErrInvalidSale
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = pgTx.Rollback() }()

	var totalCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT total_cents
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, payment.SaleID).Scan(&totalCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapError(err)
	}

	var paidCents int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE sale_id = $1
	`, payment.SaleID).Scan(&paidCents)
	if err != nil {
		return nil, mapError(err)
	}

	outstanding := totalCents - paidCents
	if outstanding < 0 {
		outstanding = 0
	}
	if payment.AmountCents > outstanding {
		return nil, store.ErrInvalidSale
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, method, reference, amount_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.SaleID, payment.Method, nullIfEmpty(payment.Reference), payment.AmountCents, payment.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, mapError(err)
	}

	created := payment
	return &created, nil
}

func (s *Store) DeleteSale(ctx context.Context, saleID string) error {
	// sale_items and payments carry ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PaymentMethodBreakdown(ctx context.Context) ([]domain.PaymentMethodSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT method, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM payments
		GROUP BY method
		ORDER BY method
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.PaymentMethodSummary, 0, 4)
	for rows.Next() {
		var entry domain.PaymentMethodSummary
		if err := rows.Scan(&entry.Method, &entry.AmountCents, &entry.Count); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SalesByCategory(ctx context.Context) ([]domain.CategorySales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(p.category, 'Uncategorized'), COALESCE(SUM(si.qty * si.unit_price_cents), 0)
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		GROUP BY COALESCE(p.category, 'Uncategorized')
		ORDER BY 1
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.CategorySales, 0, 8)
	for rows.Next() {
		var entry domain.CategorySales
		if err := rows.Scan(&entry.Category, &entry.AmountCents); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) TopProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name_snapshot, COALESCE(SUM(qty), 0), COALESCE(SUM(qty * unit_price_cents), 0)
		FROM sale_items
		GROUP BY name_snapshot
		ORDER BY SUM(qty) DESC, name_snapshot
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var entry domain.ProductSales
		if err := rows.Scan(&entry.Name, &entry.Qty, &entry.AmountCents); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySales, error) {
	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM sales
	`
	conditions := []string{}
	args := []any{}
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, "created_at >= $1")
	}
	if !to.IsZero() {
		args = append(args, to)
		if len(args) == 2 {
			conditions = append(conditions, "created_at < $2")
		} else {
			conditions = append(conditions, "created_at < $1")
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += `
		GROUP BY day
		ORDER BY day
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]domain.DailySales, 0, 31)
	for rows.Next() {
		var entry domain.DailySales
		if err := rows.Scan(&entry.Date, &entry.SaleCount, &entry.AmountCents); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DashboardSummary(ctx context.Context, lowStockThreshold int, now time.Time) (*domain.DashboardSummary, error) {
	if lowStockThreshold < 1 {
		lowStockThreshold = domain.DefaultLowStockThreshold
	}
	now = now.UTC()

	summary := domain.DashboardSummary{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(total_cents) FILTER (WHERE created_at >= $1 AND created_at < $1 + interval '1 day'), 0),
			COALESCE(SUM(total_cents) FILTER (WHERE created_at >= $2 AND created_at < $2 + interval '1 month'), 0)
		FROM sales
	`, dateUTC(now), monthStartUTC(now)).Scan(&summary.TodayCents, &summary.MonthCents)
	if err != nil {
		return nil, mapError(err)
	}

	var totalSales, totalPaid int64
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(total_cents), 0) FROM sales),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments)
	`).Scan(&totalSales, &totalPaid)
	if err != nil {
		return nil, mapError(err)
	}
	if dues := totalSales - totalPaid; dues > 0 {
		summary.PendingDuesCents = dues
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE stock < $1
	`, lowStockThreshold).Scan(&summary.LowStockCount)
	if err != nil {
		return nil, mapError(err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT name_snapshot
		FROM sale_items
		GROUP BY name_snapshot
		ORDER BY SUM(qty) DESC, name_snapshot
		LIMIT 1
	`).Scan(&summary.TopProductName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err)
	}

	return &summary, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return mapError(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidSale
		}
		return mapError(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// mapError translates serialization failures (SQLSTATE 40001) into
// ErrUnavailable so callers can surface them as retryable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return store.ErrUnavailable
	}
	return err
}
