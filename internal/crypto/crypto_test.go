package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

func TestParsePrivateKeyFormats(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	arr, _ := json.Marshal(toInts(key))

	for name, in := range map[string]string{
		"base58":     key.String(),
		"byte array": string(arr),
		"padded":     "  " + key.String() + "\n",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePrivateKey(in)
			if err != nil {
				t.Fatalf("ParsePrivateKey: %v", err)
			}
			if got.PublicKey() != key.PublicKey() {
				t.Fatalf("public key = %s, want %s", got.PublicKey(), key.PublicKey())
			}
		})
	}
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func TestParsePrivateKeyRejects(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	tampered := append(solana.PrivateKey(nil), key...)
	tampered[63] ^= 0x01

	for name, in := range map[string]string{
		"empty":        "",
		"not base58":   "0OIl",
		"short array":  "[1,2,3]",
		"mismatched":   tampered.String(),
		"bad json":     "[1,2,",
		"out of range": "[256]",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePrivateKey(in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	blob, err := EncryptKey(key, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if strings.Contains(string(blob), key.String()) {
		t.Fatal("blob contains the plaintext key")
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got.String() != key.String() {
		t.Fatal("decrypted key differs")
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	if _, err := EncryptKey(key, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	dir := t.TempDir()
	fileKey := solana.NewWallet().PrivateKey
	arr, _ := json.Marshal(toInts(fileKey))
	keypairPath := filepath.Join(dir, "id.json")
	if err := os.WriteFile(keypairPath, arr, 0o600); err != nil {
		t.Fatal(err)
	}

	rawKey := solana.NewWallet().PrivateKey
	got, err := LoadKey(context.Background(), KeyConfig{RawPrivateKey: rawKey.String(), KeypairPath: keypairPath})
	if err != nil || got.PublicKey() != rawKey.PublicKey() {
		t.Fatalf("raw key should win: %v", err)
	}

	got, err = LoadKey(context.Background(), KeyConfig{KeypairPath: keypairPath})
	if err != nil || got.PublicKey() != fileKey.PublicKey() {
		t.Fatalf("keypair file: %v", err)
	}

	encKey := solana.NewWallet().PrivateKey
	blob, _ := EncryptKey(encKey, "pw")
	encPath := filepath.Join(dir, "key.enc.json")
	if err := os.WriteFile(encPath, blob, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = LoadKey(context.Background(), KeyConfig{EncryptedKeyPath: encPath, KeyPassword: "pw"})
	if err != nil || got.PublicKey() != encKey.PublicKey() {
		t.Fatalf("encrypted file: %v", err)
	}

	if _, err := LoadKey(context.Background(), KeyConfig{}); err == nil {
		t.Fatal("expected error with no source")
	}
}

func TestWalletSignTransaction(t *testing.T) {
	w, err := NewWallet(solana.NewWallet().PrivateKey)
	if err != nil {
		t.Fatalf("NewWallet: %v", err)
	}
	hash := solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N")

	tx, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, w.PublicKey(), solana.NewWallet().PublicKey()).Build(),
	}, hash, solana.TransactionPayer(w.PublicKey()))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SignTransaction(tx); err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("VerifySignatures: %v", err)
	}

	foreign, _ := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, solana.NewWallet().PublicKey(), w.PublicKey()).Build(),
	}, hash, solana.TransactionPayer(w.PublicKey()))
	if err := w.SignTransaction(foreign); !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("err = %v, want ErrSigningFailed", err)
	}

	if strings.Contains(w.String(), "PrivateKey") || !strings.Contains(w.String(), w.PublicKey().String()) {
		t.Fatalf("String = %q", w.String())
	}
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, uri string) ([]byte, error) {
	b, ok := m[uri]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func TestLoadKeyRemote(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	blob, err := EncryptKey(key, "pw")
	if err != nil {
		t.Fatal(err)
	}
	remote := mapFetcher{"s3://keys/bot.json": blob}

	got, err := LoadKey(context.Background(), KeyConfig{
		EncryptedKeyPath: "s3://keys/bot.json",
		KeyPassword:      "pw",
		Remote:           remote,
	})
	if err != nil || got.PublicKey() != key.PublicKey() {
		t.Fatalf("remote key: %v", err)
	}

	_, err = LoadKey(context.Background(), KeyConfig{EncryptedKeyPath: "s3://keys/missing.json", Remote: remote})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if _, err := LoadKey(context.Background(), KeyConfig{EncryptedKeyPath: "s3://keys/bot.json"}); err == nil {
		t.Fatal("expected error without an object store")
	}
}
