package encryption

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"harbor-go/internal/config"
)

func testConfig(t *testing.T) config.EncryptionConfig {
	t.Helper()
	dir := t.TempDir()
	return config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "export.pub"),
		PrivateKeyPath: filepath.Join(dir, "export.key"),
	}
}

func TestSetupEncryptDecrypt(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor(testConfig(t))
	if e.IsConfigured() {
		t.Error("should not be configured before setup")
	}
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !e.IsConfigured() {
		t.Error("should be configured after setup")
	}

	plaintext := "post_id,author\np1,deleted\n"
	var sealed bytes.Buffer
	if err := e.Encrypt(strings.NewReader(plaintext), &sealed); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(sealed.String(), "p1,deleted") {
		t.Error("ciphertext contains plaintext")
	}

	ctx, err := e.Unlock("correct horse")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	var opened bytes.Buffer
	if err := ctx.Decrypt(bytes.NewReader(sealed.Bytes()), &opened); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if opened.String() != plaintext {
		t.Errorf("round trip = %q, want %q", opened.String(), plaintext)
	}
}

func TestUnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := NewAgeEncryptor(testConfig(t))
	if err := e.Setup("right"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Unlock("wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	if enc, err := NewFromConfig(config.EncryptionConfig{Type: "none"}); err != nil || enc != nil {
		t.Errorf("none: got %v, %v", enc, err)
	}
	if _, err := NewFromConfig(config.EncryptionConfig{Type: "age"}); err == nil {
		t.Error("age without key paths should fail")
	}
	if _, err := NewFromConfig(config.EncryptionConfig{Type: "pgp"}); err == nil {
		t.Error("unknown type should fail")
	}
	if enc, err := NewFromConfig(testConfig(t)); err != nil || enc == nil {
		t.Errorf("age: got %v, %v", enc, err)
	}
}
