// Package crypto seals session secrets before they reach durable storage.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
)

const sealedPrefix = "v1:"

// DeriveKey stretches a passphrase into a 32-byte key using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// Sealer encrypts short strings (tokens) into a printable form.
// The label is bound as additional data so a value sealed for one key
// cannot be replayed under another.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer for the given method and key.
func NewSealer(method Method, key []byte) (*Sealer, error) {
	aead, err := NewCipher(method, key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns "v1:" followed by base64(nonce || ciphertext).
func (s *Sealer) Seal(label, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(label))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(label, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrInvalidCiphertext
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(label))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether v looks like output of Seal.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}
