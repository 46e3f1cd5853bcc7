package bundle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// maxPacketSize is the largest serialised transaction the cluster accepts.
const maxPacketSize = 1232

// Signer signs transactions with the trading wallet. It is the only holder of
// key material.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}

// Params are the per-bundle inputs that are not part of the route.
type Params struct {
	TipLamports     uint64
	Pool            domain.TipPool
	RecentBlockhash solana.Hash
}

// Builder turns a resolved route into a signed bundle. It performs no I/O.
type Builder struct {
	signer   Signer
	selector Selector
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(signer Signer, selector Selector, logger *slog.Logger) *Builder {
	return &Builder{
		signer:   signer,
		selector: selector,
		logger:   logger.With(slog.String("component", "bundle_builder")),
	}
}

// Build appends a single tip transfer after the route's instructions and
// signs the result once with the wallet as fee payer. Any error means no
// bundle was produced; a returned bundle always validates.
func (b *Builder) Build(route domain.Route, p Params) (domain.Bundle, error) {
	if len(route.Instructions) == 0 {
		return domain.Bundle{}, fmt.Errorf("bundle: build: %w: route has no instructions", domain.ErrInvalidBundle)
	}
	if p.Pool.Len() == 0 {
		return domain.Bundle{}, fmt.Errorf("bundle: build: %w", ErrEmptyPool)
	}
	if p.RecentBlockhash == (solana.Hash{}) {
		return domain.Bundle{}, fmt.Errorf("bundle: build: %w: missing recent blockhash", domain.ErrInvalidBundle)
	}
	if p.TipLamports == 0 {
		return domain.Bundle{}, fmt.Errorf("bundle: build: %w: tip must be positive", domain.ErrInvalidBundle)
	}

	tipAccount, err := b.selector.Select(p.Pool)
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("bundle: select tip account: %w", err)
	}

	payer := b.signer.PublicKey()
	ixs := make([]solana.Instruction, 0, len(route.Instructions)+1)
	ixs = append(ixs, route.Instructions...)
	ixs = append(ixs, system.NewTransferInstruction(p.TipLamports, payer, tipAccount).Build())

	tx, err := solana.NewTransaction(ixs, p.RecentBlockhash, solana.TransactionPayer(payer))
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("bundle: compile transaction: %w", err)
	}
	if err := b.signer.SignTransaction(tx); err != nil {
		if errors.Is(err, domain.ErrSigningFailed) {
			return domain.Bundle{}, fmt.Errorf("bundle: sign: %w", err)
		}
		return domain.Bundle{}, fmt.Errorf("bundle: sign: %w: %v", domain.ErrSigningFailed, err)
	}

	bundle := domain.Bundle{
		Instructions:    ixs,
		TipAccount:      tipAccount,
		TipLamports:     p.TipLamports,
		RecentBlockhash: p.RecentBlockhash,
		FeePayer:        payer,
		Signatures:      append([]solana.Signature(nil), tx.Signatures...),
		Transactions:    []*solana.Transaction{tx},
		TipPoolVersion:  p.Pool.Version,
	}
	if err := bundle.Validate(); err != nil {
		return domain.Bundle{}, fmt.Errorf("bundle: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("bundle: serialise: %w", err)
	}
	if len(raw) > maxPacketSize {
		return domain.Bundle{}, fmt.Errorf("bundle: %w: transaction is %d bytes, limit %d",
			domain.ErrInvalidBundle, len(raw), maxPacketSize)
	}

	b.logger.Debug("bundle built",
		slog.String("bundle_id", bundle.ID()),
		slog.String("tip_account", tipAccount.String()),
		slog.Uint64("tip_lamports", p.TipLamports),
		slog.Uint64("tip_pool_version", p.Pool.Version),
		slog.Int("instructions", len(ixs)),
		slog.Int("size", len(raw)),
	)
	return bundle, nil
}
