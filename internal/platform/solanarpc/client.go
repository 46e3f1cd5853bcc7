// Package solanarpc wraps the Solana JSON-RPC calls the bot needs: the latest
// blockhash for signing and the wallet balance for startup checks.
package solanarpc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Client is a thin wrapper over the solana-go RPC client.
type Client struct {
	rpc    *rpc.Client
	logger *slog.Logger
}

// NewClient connects to endpoint. A missing scheme is treated as https.
func NewClient(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		rpc:    rpc.New(NormalizeEndpoint(endpoint)),
		logger: logger.With(slog.String("component", "solana_rpc")),
	}
}

// NormalizeEndpoint prefixes https:// when endpoint has no scheme.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return endpoint
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// LatestBlockhash returns the most recent finalized blockhash.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("solanarpc: latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("solanarpc: latest blockhash: empty result")
	}
	return out.Value.Blockhash, nil
}

// Balance returns the confirmed lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("solanarpc: balance %s: %w", account, err)
	}
	if out == nil {
		return 0, fmt.Errorf("solanarpc: balance %s: empty result", account)
	}
	return out.Value, nil
}

// LogWallet logs account's public key and SOL balance. A balance lookup
// failure is logged and returned but is not fatal to callers.
func (c *Client) LogWallet(ctx context.Context, account solana.PublicKey) error {
	lamports, err := c.Balance(ctx, account)
	if err != nil {
		c.logger.WarnContext(ctx, "wallet balance unavailable",
			slog.String("wallet", account.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	c.logger.InfoContext(ctx, "wallet connected",
		slog.String("wallet", account.String()),
		slog.String("balance_sol", ToSOL(lamports).String()),
	)
	return nil
}

// Health reports whether the node considers itself healthy.
func (c *Client) Health(ctx context.Context) error {
	status, err := c.rpc.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("solanarpc: health: %w", err)
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("solanarpc: node reports %q", status)
	}
	return nil
}

// ToSOL converts lamports to SOL.
func ToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}
