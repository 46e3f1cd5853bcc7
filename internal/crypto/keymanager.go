// Package crypto loads the trading wallet's ed25519 keypair and signs
// transactions with it. Keys may be supplied as base58, as a JSON byte array
// (solana-keygen format), or as a password-encrypted file.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// encryptedKeyJSON is the on-disk format for an encrypted keypair.
type encryptedKeyJSON struct {
	Version    int    `json:"version"`
	PublicKey  string `json:"public_key"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// KeyConfig carries the sources LoadKey can resolve a keypair from.
type KeyConfig struct {
	// RawPrivateKey is a base58 secret key or a JSON byte array.
	RawPrivateKey string

	// KeypairPath is a solana-keygen JSON file.
	KeypairPath string

	// EncryptedKeyPath is a file produced by EncryptKey, opened with
	// KeyPassword. An s3:// location is read through Remote.
	EncryptedKeyPath string
	KeyPassword      string

	Remote BlobFetcher
}

// BlobFetcher reads an object addressed by an s3://bucket/key URI.
type BlobFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// IsRemote reports whether path names an object store location.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ParsePrivateKey accepts a base58 secret key or a JSON array of 64 bytes.
func ParsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("crypto: empty private key")
	}
	var key solana.PrivateKey
	if strings.HasPrefix(s, "[") {
		var raw []int
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("crypto: private key byte array: %w", err)
		}
		key = make(solana.PrivateKey, len(raw))
		for i, v := range raw {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("crypto: private key byte %d out of range", i)
			}
			key[i] = byte(v)
		}
	} else {
		k, err := solana.PrivateKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("crypto: private key base58: %w", err)
		}
		key = k
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// checkKey verifies the secret key length and that its public half matches
// the seed.
func checkKey(key solana.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("crypto: expected %d-byte secret key, got %d bytes", ed25519.PrivateKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if string(derived[ed25519.SeedSize:]) != string(key[ed25519.SeedSize:]) {
		return errors.New("crypto: secret key public half does not match its seed")
	}
	return nil
}

// EncryptKey encrypts key with a password using PBKDF2-HMAC-SHA256 key
// derivation and AES-256-GCM. It returns the JSON blob to write to disk.
func EncryptKey(key solana.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	pub := key.PublicKey().String()
	out := encryptedKeyJSON{
		Version:    currentVersion,
		PublicKey:  pub,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, key, []byte(pub))),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey opens a blob produced by EncryptKey.
func DecryptKey(encryptedJSON []byte, password string) (solana.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored encryptedKeyJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing encrypted key JSON: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(stored.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}
	key := solana.PrivateKey(plaintext)
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves the wallet key. Sources are tried in order: raw key,
// keypair file, encrypted file.
func LoadKey(ctx context.Context, cfg KeyConfig) (solana.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		return ParsePrivateKey(cfg.RawPrivateKey)
	}

	if cfg.KeypairPath != "" {
		data, err := os.ReadFile(cfg.KeypairPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading keypair file: %w", err)
		}
		return ParsePrivateKey(string(data))
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := readEncrypted(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return nil, errors.New("crypto: no private key source configured")
}

func readEncrypted(ctx context.Context, cfg KeyConfig) ([]byte, error) {
	if !IsRemote(cfg.EncryptedKeyPath) {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading encrypted key file: %w", err)
		}
		return data, nil
	}
	if cfg.Remote == nil {
		return nil, fmt.Errorf("crypto: %s: no object store configured", cfg.EncryptedKeyPath)
	}
	data, err := cfg.Remote.Fetch(ctx, cfg.EncryptedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("crypto: fetching encrypted key: %w", err)
	}
	return data, nil
}
