package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tvcollector/pkg/storage"

	"go.uber.org/zap"
)

// failingStore simulates an unavailable persistence medium.
type failingStore struct{}

func (failingStore) Append(ctx context.Context, symbol string, price, atr float64) (storage.Observation, error) {
	return storage.Observation{}, fmt.Errorf("%w: connection refused", storage.ErrStorage)
}

func (failingStore) LatestPerSymbol(ctx context.Context) ([]storage.Observation, error) {
	return nil, fmt.Errorf("%w: connection refused", storage.ErrStorage)
}

func (failingStore) All(ctx context.Context, limit int) ([]storage.Observation, error) {
	return nil, fmt.Errorf("%w: connection refused", storage.ErrStorage)
}

func newTestHandler(store storage.Store) *Handler {
	log := zap.NewNop()
	return NewHandler(store, NewHub(log), log)
}

func postWebhook(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ReceiveWebhook(rr, req)
	return rr
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body["detail"]
}

// go test -v --run TestWebhookStoresObservation
func TestWebhookStoresObservation(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)

	rr := postWebhook(h, `{"symbol":"AAPL","price":150.25,"atr":2.35}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("expected success status, got %q", resp.Status)
	}
	if resp.Data.Symbol != "AAPL" || resp.Data.Price != 150.25 || resp.Data.ATR != 2.35 {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
	if math.Abs(resp.Data.ExitPrice-147.90) > 1e-9 {
		t.Errorf("expected exit price 147.90, got %f", resp.Data.ExitPrice)
	}

	if store.Count() != 1 {
		t.Errorf("expected 1 stored row, got %d", store.Count())
	}
}

// go test -v --run TestWebhookRejectsInvalid
func TestWebhookRejectsInvalid(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)

	rr := postWebhook(h, `{"symbol":"AAPL","price":-1,"atr":2.35}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if detail := decodeDetail(t, rr); detail != "invalid price" {
		t.Errorf("expected invalid price, got %q", detail)
	}

	rr = postWebhook(h, `{"price":1,"atr":0.5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if detail := decodeDetail(t, rr); detail != "missing symbol" {
		t.Errorf("expected missing symbol, got %q", detail)
	}

	rr = postWebhook(h, `{"symbol":"AAPL","price":1,"atr":-0.5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if detail := decodeDetail(t, rr); detail != "invalid atr" {
		t.Errorf("expected invalid atr, got %q", detail)
	}

	rr = postWebhook(h, `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}

	// None of the rejected payloads reached the store.
	if store.Count() != 0 {
		t.Errorf("expected no stored rows, got %d", store.Count())
	}
}

// go test -v --run TestWebhookStorageFailure
func TestWebhookStorageFailure(t *testing.T) {
	h := newTestHandler(failingStore{})

	rr := postWebhook(h, `{"symbol":"AAPL","price":150.25,"atr":2.35}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if detail := decodeDetail(t, rr); detail != "failed to store data" {
		t.Errorf("unexpected detail: %q", detail)
	}
}

// go test -v --run TestLatestEndpoint
func TestLatestEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)
	ctx := context.Background()

	store.Append(ctx, "AAPL", 150.25, 2.35)
	store.Append(ctx, "AAPL", 151.00, 2.00)
	store.Append(ctx, "MSFT", 300.00, 4.00)

	req := httptest.NewRequest(http.MethodGet, "/observations/latest", nil)
	rr := httptest.NewRecorder()
	h.LatestObservations(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var observations []storage.Observation
	if err := json.Unmarshal(rr.Body.Bytes(), &observations); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(observations) != 2 {
		t.Fatalf("expected 2 records, got %d", len(observations))
	}
	for _, obs := range observations {
		if obs.Symbol == "AAPL" && obs.Price != 151.00 {
			t.Errorf("expected latest AAPL row, got %+v", obs)
		}
	}
}

// go test -v --run TestLatestEndpointStorageFailure
func TestLatestEndpointStorageFailure(t *testing.T) {
	h := newTestHandler(failingStore{})

	req := httptest.NewRequest(http.MethodGet, "/observations/latest", nil)
	rr := httptest.NewRecorder()
	h.LatestObservations(rr, req)

	// Storage failure is an explicit error, not an empty list.
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

// go test -v --run TestAllEndpoint
func TestAllEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)
	ctx := context.Background()

	store.Append(ctx, "AAPL", 150.0, 2.0)
	store.Append(ctx, "MSFT", 300.0, 4.0)
	store.Append(ctx, "NVDA", 500.0, 8.0)

	req := httptest.NewRequest(http.MethodGet, "/observations?limit=2", nil)
	rr := httptest.NewRecorder()
	h.AllObservations(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var observations []storage.Observation
	if err := json.Unmarshal(rr.Body.Bytes(), &observations); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(observations) != 2 {
		t.Errorf("expected 2 rows, got %d", len(observations))
	}

	req = httptest.NewRequest(http.MethodGet, "/observations?limit=abc", nil)
	rr = httptest.NewRecorder()
	h.AllObservations(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rr.Code)
	}
}

// go test -v --run TestHealthEndpoint
func TestHealthEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)

	store.Append(context.Background(), "AAPL", 150.0, 2.0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("unexpected health body: %v", body)
	}
	if body["records_count"] != float64(1) {
		t.Errorf("expected records_count 1, got %v", body["records_count"])
	}
}

// go test -v --run TestHealthEndpointDegraded
func TestHealthEndpointDegraded(t *testing.T) {
	h := newTestHandler(failingStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.Health(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "unhealthy" || body["database"] != "error" {
		t.Errorf("expected degraded status, got %v", body)
	}
}

// go test -v --run TestExportCSV
func TestExportCSV(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newTestHandler(store)

	store.Append(context.Background(), "AAPL", 150.25, 2.35)

	req := httptest.NewRequest(http.MethodGet, "/observations/export", nil)
	rr := httptest.NewRecorder()
	h.ExportObservations(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if lines[0] != "symbol,price,atr,exit_price,timestamp" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "AAPL,150.25,2.35,147.90,") {
		t.Errorf("unexpected row: %q", lines[1])
	}
}
