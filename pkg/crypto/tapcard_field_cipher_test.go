package crypto

import (
	"strings"
	"testing"
)

func TestFieldCipherRoundTrip(t *testing.T) {
	fc, err := NewFieldCipher([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	sealed, err := fc.Seal("+82-10-1234-5678")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected sealed prefix, got %q", sealed)
	}
	if strings.Contains(sealed, "1234") {
		t.Fatal("sealed value leaks plaintext")
	}

	plain, err := fc.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "+82-10-1234-5678" {
		t.Errorf("expected original phone, got %q", plain)
	}
}

func TestFieldCipherLegacyPlaintext(t *testing.T) {
	fc, _ := NewFieldCipher([]byte("test-secret"))

	got, err := fc.Open("visitor@example.com")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "visitor@example.com" {
		t.Errorf("expected plaintext passthrough, got %q", got)
	}
}

func TestFieldCipherWrongKey(t *testing.T) {
	a, _ := NewFieldCipher([]byte("key-a"))
	b, _ := NewFieldCipher([]byte("key-b"))

	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestFieldCipherEmpty(t *testing.T) {
	if _, err := NewFieldCipher(nil); err != ErrEmptyKey {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}

	fc, _ := NewFieldCipher([]byte("k"))
	sealed, err := fc.Seal("")
	if err != nil || sealed != "" {
		t.Errorf("expected empty passthrough, got %q, %v", sealed, err)
	}
}
