package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alanyoungcy/jitoarb/internal/config"
	"github.com/alanyoungcy/jitoarb/internal/crypto"
)

// BlobStore writes an object addressed by an s3://bucket/key URI.
type BlobStore interface {
	Store(ctx context.Context, uri string, data []byte) error
}

// EncryptKey reads the plaintext wallet key from cfg (raw key or keypair
// file), encrypts it with cfg.Wallet.KeyPassword and writes the result to
// dest. An s3:// dest is uploaded through store; anything else is a local
// file created with mode 0600. It returns the wallet's public key.
func EncryptKey(ctx context.Context, cfg *config.Config, dest string, store BlobStore) (string, error) {
	if dest == "" {
		return "", errors.New("app: encrypt key: destination is empty")
	}
	if cfg.Wallet.PrivateKey == "" && cfg.Wallet.KeypairPath == "" {
		return "", errors.New("app: encrypt key: set wallet.private_key or wallet.keypair_path")
	}

	key, err := crypto.LoadKey(ctx, crypto.KeyConfig{
		RawPrivateKey: cfg.Wallet.PrivateKey,
		KeypairPath:   cfg.Wallet.KeypairPath,
	})
	if err != nil {
		return "", fmt.Errorf("app: encrypt key: %w", err)
	}
	blob, err := crypto.EncryptKey(key, cfg.Wallet.KeyPassword)
	if err != nil {
		return "", fmt.Errorf("app: encrypt key: %w", err)
	}

	if crypto.IsRemote(dest) {
		if store == nil {
			return "", fmt.Errorf("app: encrypt key: %s: no object store configured", dest)
		}
		if err := store.Store(ctx, dest, blob); err != nil {
			return "", fmt.Errorf("app: encrypt key: %w", err)
		}
	} else if err := os.WriteFile(dest, blob, 0o600); err != nil {
		return "", fmt.Errorf("app: encrypt key: %w", err)
	}
	return key.PublicKey().String(), nil
}

// NewBlobStore builds the S3 key store from cfg.
func NewBlobStore(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	ks, err := newKeyStore(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return ks, nil
}
