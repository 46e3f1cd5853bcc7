package crypto

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Wallet owns the trading keypair. Nothing outside this type sees the secret
// key.
type Wallet struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// NewWallet wraps key after checking it is a well-formed ed25519 keypair.
func NewWallet(key solana.PrivateKey) (*Wallet, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return &Wallet{key: key, pub: key.PublicKey()}, nil
}

// LoadWallet resolves a key with LoadKey and wraps it.
func LoadWallet(ctx context.Context, cfg KeyConfig) (*Wallet, error) {
	key, err := LoadKey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWallet(key)
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

// SignTransaction adds the wallet's signature to tx. It fails if tx requires
// a signer other than the wallet.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(w.pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("crypto: %w: %v", domain.ErrSigningFailed, err)
	}
	return nil
}

// String never includes key material.
func (w *Wallet) String() string {
	return fmt.Sprintf("Wallet(%s)", w.pub)
}
