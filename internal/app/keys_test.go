package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/jitoarb/internal/config"
	"github.com/alanyoungcy/jitoarb/internal/crypto"
)

type memStore map[string][]byte

func (m memStore) Store(_ context.Context, uri string, data []byte) error {
	m[uri] = data
	return nil
}

func testConfig(t *testing.T) (*config.Config, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	c := config.Defaults()
	cfg := &c
	cfg.Wallet.PrivateKey = key.String()
	cfg.Wallet.KeyPassword = "hunter2"
	return cfg, key
}

func TestEncryptKeyLocalFile(t *testing.T) {
	cfg, key := testConfig(t)
	dest := filepath.Join(t.TempDir(), "wallet.enc.json")

	pub, err := EncryptKey(context.Background(), cfg, dest, nil)
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if pub != key.PublicKey().String() {
		t.Fatalf("public key = %s, want %s", pub, key.PublicKey())
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := crypto.LoadKey(context.Background(), crypto.KeyConfig{
		EncryptedKeyPath: dest,
		KeyPassword:      "hunter2",
	})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if !got.PublicKey().Equals(key.PublicKey()) {
		t.Fatal("decrypted key does not match")
	}
}

func TestEncryptKeyRemote(t *testing.T) {
	cfg, _ := testConfig(t)
	store := memStore{}

	if _, err := EncryptKey(context.Background(), cfg, "s3://keys/bot.json", store); err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if len(store["s3://keys/bot.json"]) == 0 {
		t.Fatal("nothing uploaded")
	}

	if _, err := EncryptKey(context.Background(), cfg, "s3://keys/bot.json", nil); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestEncryptKeyRequiresPlaintextSource(t *testing.T) {
	c := config.Defaults()
	cfg := &c
	cfg.Wallet.EncryptedKeyPath = "wallet.enc.json"
	cfg.Wallet.KeyPassword = "pw"
	if _, err := EncryptKey(context.Background(), cfg, filepath.Join(t.TempDir(), "out"), nil); err == nil {
		t.Fatal("expected error")
	}

	cfg, _ = testConfig(t)
	cfg.Wallet.KeyPassword = ""
	if _, err := EncryptKey(context.Background(), cfg, filepath.Join(t.TempDir(), "out"), nil); err == nil {
		t.Fatal("expected error for empty password")
	}
}
