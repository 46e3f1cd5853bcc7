package redis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{prefix: "jitoarb", parts: []string{"lock", "wallet"}, want: "jitoarb:lock:wallet"},
		{prefix: "", parts: []string{"quote", "So111"}, want: "quote:So111"},
		{prefix: "x", parts: nil, want: "x"},
	}
	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := c.key(tt.parts...); got != tt.want {
			t.Errorf("key(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestQuoteFieldsRoundTrip(t *testing.T) {
	q := domain.Quote{
		AssetID:    "So11111111111111111111111111111111111111112",
		BuyPrice:   decimal.RequireFromString("100.000001"),
		SellPrice:  decimal.RequireFromString("100.3"),
		Confidence: domain.ConfidenceHigh,
		ObservedAt: time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC),
	}
	fields := quoteFields(q)
	vals := make(map[string]string, len(fields))
	for k, v := range fields {
		vals[k] = v.(string)
	}

	got, err := parseQuoteFields(q.AssetID, vals)
	if err != nil {
		t.Fatalf("parseQuoteFields: %v", err)
	}
	if !got.BuyPrice.Equal(q.BuyPrice) || !got.SellPrice.Equal(q.SellPrice) {
		t.Fatalf("prices = %s/%s", got.BuyPrice, got.SellPrice)
	}
	if got.Confidence != q.Confidence || !got.ObservedAt.Equal(q.ObservedAt) {
		t.Fatalf("quote = %+v", got)
	}
}

func TestParseQuoteFieldsRejectsCorrupt(t *testing.T) {
	base := map[string]string{"buy": "1", "sell": "2", "confidence": "high", "ts": "1"}
	for _, field := range []string{"buy", "sell", "confidence", "ts"} {
		vals := make(map[string]string, len(base))
		for k, v := range base {
			vals[k] = v
		}
		vals[field] = "??"
		if _, err := parseQuoteFields("a", vals); err == nil {
			t.Errorf("corrupt %s accepted", field)
		}
	}
}

func TestOptionsFromURL(t *testing.T) {
	opts, err := options(ClientConfig{URL: "redis://:secret@localhost:6380/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 || opts.Password != "secret" || opts.PoolSize != 7 {
		t.Fatalf("opts = %+v", opts)
	}
	if _, err := options(ClientConfig{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}
