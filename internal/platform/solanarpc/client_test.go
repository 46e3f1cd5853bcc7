package solanarpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
}

func TestLatestBlockhash(t *testing.T) {
	const hash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"
	srv := rpcServer(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":10},"value":{"blockhash":"` + hash + `","lastValidBlockHeight":200}}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := c.LatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("LatestBlockhash: %v", err)
	}
	if got.String() != hash {
		t.Fatalf("blockhash = %s", got)
	}
}

func TestBalance(t *testing.T) {
	srv := rpcServer(t, map[string]string{
		"getBalance": `{"context":{"slot":10},"value":2500000000}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := c.Balance(context.Background(), solana.NewWallet().PublicKey())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 2_500_000_000 {
		t.Fatalf("balance = %d", got)
	}
	if !ToSOL(got).Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("ToSOL = %s", ToSOL(got))
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"api.mainnet-beta.solana.com":         "https://api.mainnet-beta.solana.com",
		"https://api.mainnet-beta.solana.com": "https://api.mainnet-beta.solana.com",
		"http://localhost:8899":               "http://localhost:8899",
		"  rpc.example.com ":                  "https://rpc.example.com",
		"":                                    "",
	}
	for in, want := range tests {
		if got := NormalizeEndpoint(in); got != want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := rpcServer(t, map[string]string{"getHealth": `"ok"`})
	defer srv.Close()

	c := NewClient(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
