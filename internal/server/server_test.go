package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
	"github.com/alanyoungcy/jitoarb/internal/executor"
	"github.com/alanyoungcy/jitoarb/internal/server/handler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedStatus struct{ st executor.Status }

func (f fixedStatus) Status() executor.Status { return f.st }

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func newTestServer(apiKey string, checks map[string]handler.Check) *Server {
	logger := discardLogger()
	st := executor.Status{
		State:  executor.StateIdle,
		Cycles: 7,
		Quotes: []domain.Quote{
			{AssetID: "A", BuyPrice: decimal.NewFromInt(1), SellPrice: decimal.NewFromInt(2), Confidence: domain.ConfidenceHigh},
			{AssetID: "B", BuyPrice: decimal.NewFromInt(3), SellPrice: decimal.NewFromInt(4), Confidence: domain.ConfidenceLow},
		},
	}
	return NewServer(
		Config{Addr: "127.0.0.1:0", APIKey: apiKey},
		Handlers{
			Health: handler.NewHealthHandler(checks, logger),
			Status: handler.NewStatusHandler("monitor", "Wallet111", fixedStatus{st}, nil, []string{"A", "B"}, logger),
		},
		nil, nil, logger,
	)
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer("", nil)
	rec := get(t, srv.Handler(), "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	srv = newTestServer("", map[string]handler.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = get(t, srv.Handler(), "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer("", nil).Handler(), "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Mode string          `json:"mode"`
		Loop executor.Status `json:"loop"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "monitor" || body.Loop.Cycles != 7 {
		t.Fatalf("body = %+v", body)
	}
}

func TestQuotesFromLoopSnapshot(t *testing.T) {
	rec := get(t, newTestServer("", nil).Handler(), "/api/quotes?assets=B", nil)
	var body struct {
		Quotes []domain.Quote `json:"quotes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Quotes) != 1 || body.Quotes[0].AssetID != "B" {
		t.Fatalf("quotes = %+v", body.Quotes)
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer("s3cret", nil).Handler()

	if rec := get(t, h, "/api/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health should be public, got %d", rec.Code)
	}
	if rec := get(t, h, "/api/status", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d", rec.Code)
	}
	if rec := get(t, h, "/api/status", http.Header{"Authorization": {"Bearer wrong"}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d", rec.Code)
	}
	if rec := get(t, h, "/api/status", http.Header{"X-Api-Key": {"s3cret"}}); rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d", rec.Code)
	}
	if rec := get(t, h, "/api/status?api_key=s3cret", nil); rec.Code != http.StatusOK {
		t.Fatalf("status with query key = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer("s3cret", nil).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example" {
		t.Fatalf("missing allow-origin header")
	}
}

func TestRateLimit(t *testing.T) {
	logger := discardLogger()
	srv := NewServer(Config{Addr: "127.0.0.1:0"}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Status: handler.NewStatusHandler("monitor", "", fixedStatus{}, nil, nil, logger),
	}, nil, denyAll{}, logger)
	rec := get(t, srv.Handler(), "/api/status", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := newTestServer("", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
