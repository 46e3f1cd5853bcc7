// Package bundle assembles the atomic trade-plus-tip transaction submitted to
// the relay, and manages the relay's tip accounts.
package bundle

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// DefaultTipAccounts are the block engine's published mainnet tip accounts,
// used until the first successful refresh.
var DefaultTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// ErrEmptyPool is returned when a pool would hold no accounts.
var ErrEmptyPool = errors.New("tip pool is empty")

// Pool holds the current tip-account snapshot. Readers get an immutable
// domain.TipPool; Replace publishes a new snapshot with a higher version.
type Pool struct {
	cur atomic.Pointer[domain.TipPool]
	now func() time.Time
}

// NewPool creates a pool at version 1.
func NewPool(accounts []solana.PublicKey) (*Pool, error) {
	p := &Pool{now: time.Now}
	accts := dedupe(accounts)
	if len(accts) == 0 {
		return nil, ErrEmptyPool
	}
	p.cur.Store(&domain.TipPool{Version: 1, Accounts: accts, UpdatedAt: p.now()})
	return p, nil
}

// NewDefaultPool creates a pool from DefaultTipAccounts.
func NewDefaultPool() *Pool {
	accts, err := ParseAccounts(DefaultTipAccounts)
	if err != nil {
		panic(fmt.Sprintf("bundle: default tip accounts: %v", err))
	}
	p, err := NewPool(accts)
	if err != nil {
		panic(fmt.Sprintf("bundle: default tip accounts: %v", err))
	}
	return p
}

// Snapshot returns the current snapshot.
func (p *Pool) Snapshot() domain.TipPool {
	return *p.cur.Load()
}

// Replace publishes accounts as a new snapshot and returns it. An empty list
// leaves the current snapshot in place.
func (p *Pool) Replace(accounts []solana.PublicKey) (domain.TipPool, error) {
	accts := dedupe(accounts)
	if len(accts) == 0 {
		return p.Snapshot(), ErrEmptyPool
	}
	for {
		old := p.cur.Load()
		next := &domain.TipPool{Version: old.Version + 1, Accounts: accts, UpdatedAt: p.now()}
		if p.cur.CompareAndSwap(old, next) {
			return *next, nil
		}
	}
}

// ParseAccounts decodes base58 account addresses.
func ParseAccounts(addrs []string) ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(addrs))
	for _, a := range addrs {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("bundle: tip account %q: %w", a, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

func dedupe(accounts []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(accounts))
	out := make([]solana.PublicKey, 0, len(accounts))
	for _, a := range accounts {
		if a.IsZero() {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
