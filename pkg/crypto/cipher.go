package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Method selects the AEAD used to seal values at rest.
type Method int

const (
	XChaCha20Poly1305 Method = iota
	AES256GCM
)

type KeySize uint32

const (
	AES256KeySize   KeySize = 32
	Chacha20KeySize KeySize = chacha20poly1305.KeySize
)

func (m Method) String() string {
	switch m {
	case XChaCha20Poly1305:
		return "xchacha20poly1305"
	case AES256GCM:
		return "aes256gcm"
	default:
		return "unknown"
	}
}

// NewCipher builds the AEAD for method, checking the key length first.
func NewCipher(method Method, key []byte) (cipher.AEAD, error) {
	keylength := len(key)
	switch method {
	case AES256GCM:
		if keylength != int(AES256KeySize) {
			return nil, fmt.Errorf("crypto: invalid aes256 key length: expected %d, got %d", int(AES256KeySize), keylength)
		}
		return newAESGCMCipher(key)
	case XChaCha20Poly1305:
		if keylength != int(Chacha20KeySize) {
			return nil, fmt.Errorf("crypto: invalid xchacha20poly1305 key length: expected %d, got %d", int(Chacha20KeySize), keylength)
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: new xchacha20 cipher: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("crypto: unknown encryption method: %v", method)
	}
}

func newAESGCMCipher(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return aead, nil
}

// GenerateKey generates a random key of a given size.
func GenerateKey(keysize KeySize) ([]byte, error) {
	key := make([]byte, keysize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}
