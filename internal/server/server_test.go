package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/manager"
	"fintrack/internal/pagination"
)

func pageInfoFor(page, limit int) pagination.PageInfo {
	return pagination.PageInfo{
		CurrentPage: page,
		Limit:       limit,
		TotalCount:  1,
		TotalPages:  1,
		HasPrev:     page > 1,
	}
}

type stubBackend struct{}

func (stubBackend) Wallets(ctx context.Context) ([]core.Wallet, error) {
	return []core.Wallet{{ID: "w1", Name: "Main", Balance: 100}}, nil
}

func (stubBackend) CreateWallet(ctx context.Context, name string) (core.Wallet, error) {
	return core.Wallet{ID: "w2", Name: name}, nil
}

func (stubBackend) DeleteWallet(ctx context.Context, walletID string) error { return nil }

func (stubBackend) Transactions(ctx context.Context, walletID string, page, limit int) (api.TransactionPage, error) {
	return api.TransactionPage{
		Transactions: []core.Transaction{{ID: "t1", WalletID: walletID, Type: core.Buy, Amount: -50}},
		PageInfo:     pageInfoFor(page, limit),
	}, nil
}

func (stubBackend) TransactionErrors(ctx context.Context, walletID string) ([]api.FailedTransaction, error) {
	return nil, nil
}

func (stubBackend) DetectCurrency(ctx context.Context, fileName string, file io.Reader) (string, error) {
	return "EUR", nil
}

func (stubBackend) Upload(ctx context.Context, req api.UploadRequest) (api.UploadResult, error) {
	if err := api.ValidateUploadFile(req.FileName); err != nil {
		return api.UploadResult{}, err
	}
	return api.UploadResult{Imported: 2}, nil
}

func (stubBackend) Stats(ctx context.Context, walletID string) (api.WalletStats, error) {
	return api.WalletStats{Balance: 100}, nil
}

func (stubBackend) MutualFunds(ctx context.Context) ([]api.MutualFund, error) {
	return []api.MutualFund{{ID: "f1", Name: "Index"}}, nil
}

func (stubBackend) FundValues(ctx context.Context, fundID string) ([]api.FundValue, error) {
	return []api.FundValue{{Value: 101.5}}, nil
}

func (stubBackend) AddFundValue(ctx context.Context, fundID string, value api.FundValue) error {
	return nil
}

func (stubBackend) Health(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	m := manager.New(stubBackend{}, nil, nil)
	s := NewServer("127.0.0.1:0", m, nil)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestListWalletsWithRefresh(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallets?refresh=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var wallets []core.Wallet
	if err := json.Unmarshal(rec.Body.Bytes(), &wallets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(wallets) != 1 || wallets[0].ID != "w1" {
		t.Errorf("wallets = %+v", wallets)
	}
	if len(wallets[0].Transactions) != 1 {
		t.Errorf("wallet should be hydrated with its first page")
	}
}

func TestSelectWalletValidation(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/wallets/select", strings.NewReader(`{}`))
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSelectThenStats(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/wallets/select", strings.NewReader(`{"wallet_id": "w1"}`))
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}

	var stats manager.SelectedWalletStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.DepositsAndIncome.Deposits != 50 {
		t.Errorf("deposits = %v, want 50", stats.DepositsAndIncome.Deposits)
	}
}

func TestStatsWithoutSelection(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteWallet(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/wallets/w1", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	part.Write([]byte("not a spreadsheet"))
	writer.WriteField("wallet_id", "w1")
	writer.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadAccepted(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("file", "tx.csv")
	part.Write([]byte("date,amount\n"))
	writer.WriteField("wallet_id", "w1")
	writer.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var result api.UploadResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("imported = %d, want 2", result.Imported)
	}
}

func TestGrowthEmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/growth", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestSetAssetValueWithoutStore(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/assets/values",
		strings.NewReader(`{"asset_name": "VWCE", "value": 120.5}`))
	s.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestAddFundValue(t *testing.T) {
	s := newTestServer(t)

	// Amounts arrive either as JSON numbers or as user-entered strings with
	// a comma separator.
	for _, body := range []string{
		`{"date": "2024-03-01", "value": 104.2}`,
		`{"date": "2024-03-01", "value": "104,2"}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/funds/f1/values", strings.NewReader(body))
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("body %s: status = %d, want 204: %s", body, rec.Code, rec.Body.String())
		}
	}

	// Non-positive amounts are rejected in both forms.
	for _, body := range []string{
		`{"date": "2024-03-01", "value": "-5"}`,
		`{"date": "2024-03-01", "value": -5}`,
		`{"date": "2024-03-01", "value": 0}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/funds/f1/values", strings.NewReader(body))
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSetAssetValueRejectsNonPositive(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{
		`{"asset_name": "VWCE", "value": -5}`,
		`{"asset_name": "VWCE", "value": "0"}`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/assets/values", strings.NewReader(body))
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestMutatingRequestsRateLimited(t *testing.T) {
	s := newTestServer(t)

	var last int
	for i := 0; i < 61; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/errors/dismiss", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		s.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("61st request status = %d, want 429", last)
	}
}
