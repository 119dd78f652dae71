package domain

import "time"

// Monetary amounts are int64 minor units (two implied decimals). Totals are
// always derived in integer arithmetic; floats never accumulate money.

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
)

// DefaultLowStockThreshold marks products that need restocking on the dashboard.
const DefaultLowStockThreshold = 20

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Stock          int       `json:"stock"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is one entry of an open cart. Name and price are snapshotted at
// add time so catalog edits never retroactively change an open cart.
type CartLine struct {
	ProductID      string `json:"product_id"`
	NameSnapshot   string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
}

type SaleItem struct {
	ProductID      string `json:"product_id"`
	NameSnapshot   string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Payment struct {
	ID          string    `json:"id"`
	SaleID      string    `json:"sale_id"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sale is the durable record produced by a checkout commit. It is immutable
// once committed except for payments appended through the split/partial flow.
type Sale struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountPercent int        `json:"discount_percent"`
	TotalCents      int64      `json:"total_cents"`
	CustomerID      string     `json:"customer_id,omitempty"`
	ReceiptRef      string     `json:"receipt_ref"`
	Items           []SaleItem `json:"items"`
	Payments        []Payment  `json:"payments"`
}

// OutstandingCents is the sale's unpaid balance, never negative.
func (s Sale) OutstandingCents() int64 {
	paid := int64(0)
	for _, p := range s.Payments {
		paid += p.AmountCents
	}
	if paid >= s.TotalCents {
		return 0
	}
	return s.TotalCents - paid
}

type Receipt struct {
	SaleID     string     `json:"sale_id"`
	CreatedAt  time.Time  `json:"created_at"`
	TotalCents int64      `json:"total_cents"`
	Items      []SaleItem `json:"items"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ProductCreateRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Stock          int    `json:"stock"`
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	UnitPriceCents *int64  `json:"unit_price_cents,omitempty"`
	Stock          *int    `json:"stock,omitempty"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type CartAddRequest struct {
	// Product accepts a product id or a name fragment; it must resolve to
	// exactly one catalog product.
	Product string `json:"product"`
	Qty     int    `json:"qty"`
}

type CartResponse struct {
	CartID        string     `json:"cart_id"`
	Lines         []CartLine `json:"lines"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

type QuoteRequest struct {
	DiscountPercent int `json:"discount_percent"`
}

type QuoteResponse struct {
	SubtotalCents   int64 `json:"subtotal_cents"`
	DiscountPercent int   `json:"discount_percent"`
	DueCents        int64 `json:"due_cents"`
}

type CheckoutRequest struct {
	DiscountPercent  int    `json:"discount_percent"`
	CustomerID       string `json:"customer_id"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	// AmountCents is the first payment against the sale. Zero means pay the
	// full due amount; anything below it leaves an outstanding balance.
	AmountCents int64 `json:"amount_cents"`
}

type CheckoutResponse struct {
	Sale             Sale  `json:"sale"`
	OutstandingCents int64 `json:"outstanding_cents"`
}

type PaymentRequest struct {
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentResponse struct {
	Payment          Payment `json:"payment"`
	OutstandingCents int64   `json:"outstanding_cents"`
}

type Suggestion struct {
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Stock          int     `json:"stock"`
	Score          float64 `json:"score"`
}

type SuggestionRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SuggestionResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	LatencyMS   int64        `json:"latency_ms"`
}

type PaymentMethodSummary struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Count       int    `json:"count"`
}

type CategorySales struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
}

type ProductSales struct {
	Name        string `json:"name"`
	Qty         int64  `json:"qty"`
	AmountCents int64  `json:"amount_cents"`
}

type DailySales struct {
	Date        string `json:"date"`
	SaleCount   int    `json:"sale_count"`
	AmountCents int64  `json:"amount_cents"`
}

type DashboardSummary struct {
	TodayCents       int64  `json:"today_cents"`
	MonthCents       int64  `json:"month_cents"`
	LowStockCount    int    `json:"low_stock_count"`
	PendingDuesCents int64  `json:"pending_dues_cents"`
	TopProductName   string `json:"top_product_name"`
}

type DailyReport struct {
	Date        string                 `json:"date"`
	SaleCount   int                    `json:"sale_count"`
	GrossCents  int64                  `json:"gross_cents"`
	ByPayment   []PaymentMethodSummary `json:"by_payment"`
	TopProducts []ProductSales         `json:"top_products"`
}
