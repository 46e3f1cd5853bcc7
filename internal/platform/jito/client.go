// Package jito is the JSON-RPC client for the Jito block engine bundle API.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const bundlesPath = "/api/v1/bundles"

// Config configures the block engine client.
type Config struct {
	// BlockEngineURL is the block engine root, e.g.
	// "https://mainnet.block-engine.jito.wtf".
	BlockEngineURL string
	// AuthUUID is sent as x-jito-auth when set.
	AuthUUID string
	Timeout  time.Duration
}

// Client talks to the block engine's bundle endpoint.
type Client struct {
	rpc    jsonrpc.RPCClient
	logger *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.AuthUUID != "" {
		opts.CustomHeaders = map[string]string{"x-jito-auth": cfg.AuthUUID}
	}
	endpoint := strings.TrimRight(cfg.BlockEngineURL, "/") + bundlesPath
	return &Client{
		rpc:    jsonrpc.NewClientWithOpts(endpoint, opts),
		logger: logger.With(slog.String("component", "jito_client")),
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// RPCError is an error object returned in a JSON-RPC response.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC request and returns the raw result. Error
// objects come back as *RPCError, non-JSON HTTP failures carry the status.
func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.rpc.CallForInto(ctx, &result, method, params)
	if err == nil {
		return result, nil
	}

	var rpcErr *jsonrpc.RPCError
	var httpErr *jsonrpc.HTTPError
	switch {
	case errors.As(err, &rpcErr):
		return nil, fmt.Errorf("jito: %s: %w", method, &RPCError{Code: rpcErr.Code, Message: rpcErr.Message})
	case errors.As(err, &httpErr):
		return nil, fmt.Errorf("jito: %s: HTTP %d: %w", method, httpErr.Code, err)
	default:
		return nil, fmt.Errorf("jito: %s: %w", method, err)
	}
}

// SendBundle submits base64-encoded signed transactions and returns the
// bundle id assigned by the block engine.
func (c *Client) SendBundle(ctx context.Context, txs []string) (string, error) {
	params := []any{txs, map[string]string{"encoding": "base64"}}
	result, err := c.call(ctx, "sendBundle", params)
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(result, &id); err != nil {
		return "", fmt.Errorf("jito: sendBundle: decode result: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("jito: sendBundle: empty bundle id")
	}
	c.logger.DebugContext(ctx, "bundle sent", slog.String("bundle_id", id), slog.Int("transactions", len(txs)))
	return id, nil
}

// BundleStatus is one entry of getBundleStatuses.
type BundleStatus struct {
	BundleID           string          `json:"bundle_id"`
	Transactions       []string        `json:"transactions"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status"`
	Err                json.RawMessage `json:"err"`
}

// Succeeded reports whether Err is the {"Ok": null} success marker.
func (s BundleStatus) Succeeded() bool {
	if len(s.Err) == 0 || string(s.Err) == "null" {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(s.Err, &m); err != nil {
		return false
	}
	_, ok := m["Ok"]
	return ok && len(m) == 1
}

type contextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// GetBundleStatuses returns the landed-bundle statuses for ids. Unknown ids
// are omitted. Both the {context, value} and bare array result shapes are
// accepted.
func (c *Client) GetBundleStatuses(ctx context.Context, ids []string) ([]BundleStatus, json.RawMessage, error) {
	result, err := c.call(ctx, "getBundleStatuses", []any{ids})
	if err != nil {
		return nil, nil, err
	}
	statuses, err := decodeValue[BundleStatus](result)
	if err != nil {
		return nil, result, fmt.Errorf("jito: getBundleStatuses: decode: %w", err)
	}
	return statuses, result, nil
}

// InflightStatus is one entry of getInflightBundleStatuses. Status is one of
// Invalid, Pending, Failed or Landed.
type InflightStatus struct {
	BundleID   string `json:"bundle_id"`
	Status     string `json:"status"`
	LandedSlot uint64 `json:"landed_slot"`
}

// GetInflightBundleStatuses returns statuses of recently submitted bundles.
func (c *Client) GetInflightBundleStatuses(ctx context.Context, ids []string) ([]InflightStatus, json.RawMessage, error) {
	result, err := c.call(ctx, "getInflightBundleStatuses", []any{ids})
	if err != nil {
		return nil, nil, err
	}
	statuses, err := decodeValue[InflightStatus](result)
	if err != nil {
		return nil, result, fmt.Errorf("jito: getInflightBundleStatuses: decode: %w", err)
	}
	return statuses, result, nil
}

// TipAccounts lists the block engine's tip accounts.
func (c *Client) TipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	result, err := c.call(ctx, "getTipAccounts", nil)
	if err != nil {
		return nil, err
	}
	var addrs []string
	if err := json.Unmarshal(result, &addrs); err != nil {
		return nil, fmt.Errorf("jito: getTipAccounts: decode: %w", err)
	}
	out := make([]solana.PublicKey, 0, len(addrs))
	for _, a := range addrs {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed tip account", slog.String("account", a))
			continue
		}
		out = append(out, pk)
	}
	return out, nil
}

// decodeValue accepts null, a bare array, or a {context, value} wrapper.
// Null entries inside the array are dropped.
func decodeValue[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var items []*T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
	} else {
		var wrapped contextValue[[]*T]
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Value
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out, nil
}
