package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"comandero/backend/internal/cache"
	"comandero/backend/internal/catalog"
	"comandero/backend/internal/domain"
	"comandero/backend/internal/service"
	"comandero/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()

	repo := memory.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username: "admin",
		Password: string(hash),
		Role:     "admin",
		Active:   true,
	}); err != nil {
		t.Fatal(err)
	}

	svc := service.New(repo, cache.NoopReportCache{}, catalog.Default(), time.Minute)
	auth := NewAuthManager("test-secret", time.Hour, repo)
	api := New(svc, auth, "*")
	return api, api.Handler()
}

func login(t *testing.T, handler http.Handler) string {
	t.Helper()
	body := bytes.NewBufferString(`{"username":"admin","password":"admin123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf status = %d", rec.Code)
	}
	var payload struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	return payload.Token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, csrf, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	_, handler := newTestAPI(t)
	token := login(t, handler)
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, csrf,
		`{"customer_name":"Ana","table_number":"3","items":["Torta Mixta","Hazla Cochi"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var order domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatal(err)
	}
	if order.ID != 1 || order.Total.String() != "145" {
		t.Fatalf("order = %+v", order)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/1/payment", token, csrf,
		`{"method":"Cash","cash_tendered":200}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment status = %d body = %s", rec.Code, rec.Body.String())
	}
	var payResp domain.PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payResp); err != nil {
		t.Fatal(err)
	}
	if payResp.Order.Payment == nil || payResp.Order.Payment.Change.String() != "55" {
		t.Fatalf("payment = %+v", payResp.Order.Payment)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/orders/1/status", token, csrf,
		`{"status":"Delivered"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/orders/1", token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var fetched domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.StatusDelivered {
		t.Fatalf("Status = %s, want Delivered", fetched.Status)
	}
}

func TestOpenDayConflict(t *testing.T) {
	_, handler := newTestAPI(t)
	token := login(t, handler)
	csrf := csrfToken(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/cash/open-day", token, csrf, `{"amount":500}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open-day status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cash/open-day", token, csrf, `{"amount":100}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open-day status = %d, want 409", rec.Code)
	}
}

func TestOrderNotFoundIs404(t *testing.T) {
	_, handler := newTestAPI(t)
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders/99", token, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMutationWithoutCSRFRejected(t *testing.T) {
	_, handler := newTestAPI(t)
	token := login(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders", token, "",
		`{"customer_name":"Ana","items":["Hazla Cochi"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequestWithoutTokenRejected(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDailyCutRequiresAdmin(t *testing.T) {
	api, handler := newTestAPI(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("cashier123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := api.auth.userStore.CreateUser(context.Background(), domain.UserAccount{
		Username: "caja1",
		Password: string(hash),
		Role:     "cashier",
		Active:   true,
	}); err != nil {
		t.Fatal(err)
	}

	body := bytes.NewBufferString(`{"username":"caja1","password":"cashier123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashier login status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	got := doJSON(t, handler, http.MethodGet, "/api/v1/reports/daily-cut", resp.AccessToken, "", "")
	if got.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", got.Code)
	}
}
