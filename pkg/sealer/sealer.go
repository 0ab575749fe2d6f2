package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const KeySize = 32

var ErrInvalidToken = errors.New("invalid token")

// Sealer produces opaque URL-safe tokens binding two identifiers together.
// Tokens are AES-256-GCM sealed so they can be neither read nor forged.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 (std encoding) 32-byte key.
func New(key string) (*Sealer, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode sealer key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("sealer key must be %d bytes, got %d", KeySize, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aesgcm}, nil
}

// GenerateKey returns a fresh random key in the format New expects.
func GenerateKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (s *Sealer) Seal(first, second string) (string, error) {
	if strings.Contains(first, ":") {
		return "", fmt.Errorf("identifier %q must not contain ':'", first)
	}
	plaintext := []byte(first + ":" + second)

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Open(token string) (string, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) <= nonceSize {
		return "", "", ErrInvalidToken
	}
	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	pt, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	first, second, ok := strings.Cut(string(pt), ":")
	if !ok {
		return "", "", ErrInvalidToken
	}

	return first, second, nil
}
