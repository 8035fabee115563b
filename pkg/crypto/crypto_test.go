package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func newTestSealer(t *testing.T, method Method) *Sealer {
	t.Helper()
	key, err := GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s, err := NewSealer(method, key)
	if err != nil {
		t.Fatalf("NewSealer(%v): %v", method, err)
	}
	return s
}

func TestSealOpen(t *testing.T) {
	for _, method := range []Method{XChaCha20Poly1305, AES256GCM} {
		t.Run(method.String(), func(t *testing.T) {
			s := newTestSealer(t, method)

			sealed, err := s.Seal("token", "eyJhbGciOi.secret")
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			if !IsSealed(sealed) {
				t.Fatalf("IsSealed(%q) = false", sealed)
			}

			got, err := s.Open("token", sealed)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if got != "eyJhbGciOi.secret" {
				t.Errorf("Open = %q, want original plaintext", got)
			}
		})
	}
}

func TestOpenWrongLabel(t *testing.T) {
	s := newTestSealer(t, XChaCha20Poly1305)
	sealed, err := s.Seal("token", "abc")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := s.Open("email", sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Open with wrong label: err = %v, want ErrDecryptionFailed", err)
	}
}

func TestOpenGarbage(t *testing.T) {
	s := newTestSealer(t, XChaCha20Poly1305)
	for _, in := range []string{"", "plain-token", "v1:!!!", "v1:AAAA"} {
		if _, err := s.Open("token", in); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Open(%q): err = %v, want ErrInvalidCiphertext", in, err)
		}
	}
}

func TestNewCipherKeyLength(t *testing.T) {
	if _, err := NewCipher(XChaCha20Poly1305, make([]byte, 16)); err == nil {
		t.Errorf("NewCipher: expected error for short key")
	}
	if _, err := NewCipher(Method(9), make([]byte, 32)); err == nil {
		t.Errorf("NewCipher: expected error for unknown method")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("cliniclink-salt!")
	a := DeriveKey("correct horse", salt)
	b := DeriveKey("correct horse", salt)
	c := DeriveKey("battery staple", salt)
	if len(a) != 32 {
		t.Fatalf("DeriveKey length = %d, want 32", len(a))
	}
	if !bytes.Equal(a, b) {
		t.Errorf("DeriveKey not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Errorf("DeriveKey produced same key for different passphrases")
	}
}
