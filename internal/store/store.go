package store

import (
	"context"
	"errors"
	"time"

	"swiftsale/backend/internal/domain"
)

var (
	// ErrNotFound covers unknown products, customers, and sales.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousProduct means a product query matched more than one product.
	ErrAmbiguousProduct = errors.New("ambiguous product")
	// ErrInsufficientStock aborts a commit whose requested quantity exceeds
	// live stock for any line.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidSale covers malformed requests: bad quantities, unsupported
	// discount rates or payment methods, overpayment.
	ErrInvalidSale = errors.New("invalid sale")
	// ErrUnavailable means the backing store could not attempt the operation;
	// the caller may retry unchanged.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvariant flags internal consistency violations (negative totals,
	// negative stock). It must never be swallowed.
	ErrInvariant = errors.New("invariant violation")
)

type Repository interface {
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	FindProductsByName(ctx context.Context, query string, limit int) ([]domain.Product, error)
	UnitsSoldByProduct(ctx context.Context, productIDs []string) (map[string]int64, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	FindCustomer(ctx context.Context, query string) (*domain.Customer, error)

	// CreateSale is the atomic commit: it persists the sale, its items, and
	// the opening payment, decrements stock, and writes the receipt
	// reference, all in one transaction.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, saleID string) (*domain.Sale, error)
	AddPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	DeleteSale(ctx context.Context, saleID string) error

	PaymentMethodBreakdown(ctx context.Context) ([]domain.PaymentMethodSummary, error)
	SalesByCategory(ctx context.Context) ([]domain.CategorySales, error)
	TopProducts(ctx context.Context, limit int) ([]domain.ProductSales, error)
	DailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySales, error)
	DashboardSummary(ctx context.Context, lowStockThreshold int, now time.Time) (*domain.DashboardSummary, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
