package httpapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"swiftsale/backend/internal/domain"
	"swiftsale/backend/internal/service"
	"swiftsale/backend/internal/store/memory"
	"swiftsale/backend/internal/suggest"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	engine := suggest.NewEngine(nil, 0)
	svc := service.New(repo, engine, 0)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*")
}

// doJSON issues an authenticated JSON request against the API and decodes the
// response body into dest (when dest is non-nil).
func doJSON(t *testing.T, api *API, method, path, token, csrf string, payload any, dest any) int {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if dest != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	var opened map[string]string
	if code := doJSON(t, api, http.MethodPost, "/api/v1/carts", token, csrf, nil, &opened); code != http.StatusCreated {
		t.Fatalf("open cart: expected 201, got %d", code)
	}
	cartID := opened["cart_id"]
	if cartID == "" {
		t.Fatal("expected cart_id in open response")
	}

	base := "/api/v1/carts/" + cartID
	if code := doJSON(t, api, http.MethodPost, base+"/items", token, csrf, domain.CartAddRequest{Product: "iPhone 15", Qty: 2}, nil); code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", code)
	}
	if code := doJSON(t, api, http.MethodPost, base+"/items", token, csrf, domain.CartAddRequest{Product: "Coca Cola 500ml", Qty: 5}, nil); code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", code)
	}

	var quote domain.QuoteResponse
	if code := doJSON(t, api, http.MethodPost, base+"/quote", token, csrf, domain.QuoteRequest{DiscountPercent: 10}, &quote); code != http.StatusOK {
		t.Fatalf("quote: expected 200, got %d", code)
	}
	if quote.DueCents != 14400000 {
		t.Fatalf("expected due 14400000, got %d", quote.DueCents)
	}

	var checkout domain.CheckoutResponse
	if code := doJSON(t, api, http.MethodPost, base+"/checkout", token, csrf, domain.CheckoutRequest{
		DiscountPercent: 10,
		PaymentMethod:   domain.PaymentMethodUPI,
	}, &checkout); code != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", code)
	}
	if checkout.Sale.TotalCents != 14400000 {
		t.Fatalf("expected sale total 14400000, got %d", checkout.Sale.TotalCents)
	}
	if checkout.Sale.ReceiptRef != "/bill/"+checkout.Sale.ID {
		t.Fatalf("unexpected receipt ref %s", checkout.Sale.ReceiptRef)
	}

	// The receipt page referenced by the sale must be publicly reachable.
	req := httptest.NewRequest(http.MethodGet, checkout.Sale.ReceiptRef, nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bill page: expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "iPhone 15") || !strings.Contains(page, "144000.00") {
		t.Fatalf("bill page missing expected content:\n%s", page)
	}
}

func TestCheckoutInsufficientStockReturns409(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	var opened map[string]string
	doJSON(t, api, http.MethodPost, "/api/v1/carts", token, csrf, nil, &opened)
	base := "/api/v1/carts/" + opened["cart_id"]

	if code := doJSON(t, api, http.MethodPost, base+"/items", token, csrf, domain.CartAddRequest{Product: "iPhone 15", Qty: 25}, nil); code != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", code)
	}
	code := doJSON(t, api, http.MethodPost, base+"/checkout", token, csrf, domain.CheckoutRequest{PaymentMethod: domain.PaymentMethodCash}, nil)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d", code)
	}
}

func TestBillPageNotFound(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/bill/sale-does-not-exist", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Receipt Not Found") {
		t.Fatalf("expected Receipt Not Found page, got:\n%s", rec.Body.String())
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	var resp domain.SuggestionResponse
	code := doJSON(t, api, http.MethodGet, "/api/v1/products/suggestions?q=cola&limit=3", token, "", nil, &resp)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("expected suggestions for 'cola'")
	}
	if resp.Suggestions[0].Name != "Coca Cola 500ml" {
		t.Fatalf("expected Coca Cola 500ml first, got %s", resp.Suggestions[0].Name)
	}
}

func TestSaleDeleteRequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	var opened map[string]string
	doJSON(t, api, http.MethodPost, "/api/v1/carts", token, csrf, nil, &opened)
	base := "/api/v1/carts/" + opened["cart_id"]
	doJSON(t, api, http.MethodPost, base+"/items", token, csrf, domain.CartAddRequest{Product: "Oreo Biscuits", Qty: 1}, nil)

	var checkout domain.CheckoutResponse
	if code := doJSON(t, api, http.MethodPost, base+"/checkout", token, csrf, domain.CheckoutRequest{PaymentMethod: domain.PaymentMethodCash}, &checkout); code != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", code)
	}

	salePath := "/api/v1/sales/" + checkout.Sale.ID

	// Wrong PIN is rejected before the sale is touched.
	req := httptest.NewRequest(http.MethodDelete, salePath, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	req.Header.Set("X-Manager-PIN", "000000")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, salePath, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	req.Header.Set("X-Manager-PIN", "123456")
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid pin, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// The sale and its receipt are gone.
	var sale map[string]any
	if code := doJSON(t, api, http.MethodGet, salePath, token, "", nil, &sale); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestDailyReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	var opened map[string]string
	doJSON(t, api, http.MethodPost, "/api/v1/carts", token, csrf, nil, &opened)
	base := "/api/v1/carts/" + opened["cart_id"]
	doJSON(t, api, http.MethodPost, base+"/items", token, csrf, domain.CartAddRequest{Product: "Maggi 2-Minute", Qty: 2}, nil)
	if code := doJSON(t, api, http.MethodPost, base+"/checkout", token, csrf, domain.CheckoutRequest{PaymentMethod: domain.PaymentMethodCard}, nil); code != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", code)
	}

	today := time.Now().UTC().Format("2006-01-02")

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/reports/daily?date=%s&format=csv", today), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv report: expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "summary,gross_cents,2800") {
		t.Fatalf("csv missing gross line:\n%s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/reports/daily?date=%s&format=printable", today), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("printable report: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Daily Report "+today) {
		t.Fatalf("printable report missing title:\n%s", rec.Body.String())
	}
}

func TestDailyReportCSVQuotesReservedCharacters(t *testing.T) {
	report := domain.DailyReport{
		Date:       "2026-09-01",
		SaleCount:  1,
		GrossCents: 2800,
		TopProducts: []domain.ProductSales{
			{Name: "Salt, Iodized 1kg", Qty: 2, AmountCents: 2800},
		},
	}

	out := dailyReportToCSV(report)
	if !strings.Contains(out, `"Salt, Iodized 1kg_qty"`) {
		t.Fatalf("comma in product name must be quoted:\n%s", out)
	}

	// Every row must parse back into the three-column shape.
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("generated csv does not parse: %v", err)
	}
	for i, record := range records {
		if len(record) != 3 {
			t.Fatalf("row %d has %d columns, want 3: %v", i, len(record), record)
		}
	}
}

func TestDashboardEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	var summary domain.DashboardSummary
	code := doJSON(t, api, http.MethodGet, "/api/v1/dashboard", token, "", nil, &summary)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	// The seeded catalog ships two products below the default threshold.
	if summary.LowStockCount != 2 {
		t.Fatalf("expected 2 low stock products, got %d", summary.LowStockCount)
	}
}
