// Package fieldcrypt decrypts field values that are stored encrypted.
package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// ErrInvalidKey is returned when the key is not 32 bytes.
var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// ErrDecrypt is returned when a value cannot be opened with the key.
var ErrDecrypt = errors.New("decryption failed")

// Decrypter turns a stored field value into its plain text.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

// SecretBox encrypts and decrypts values with NaCl secretbox. Ciphertexts are
// base64 encoded nonce followed by the sealed box.
type SecretBox struct {
	key [keySize]byte
}

// NewSecretBox creates a SecretBox from a raw 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	sb := &SecretBox{}
	copy(sb.key[:], key)
	return sb, nil
}

// NewSecretBoxFromString creates a SecretBox from a base64 encoded key.
func NewSecretBoxFromString(encoded string) (*SecretBox, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	return NewSecretBox(key)
}

// Encrypt seals a plain text value.
func (s *SecretBox) Encrypt(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. Empty values decrypt to themselves.
func (s *SecretBox) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Noop returns values unchanged. It is used when no key is configured.
type Noop struct{}

// Decrypt returns value unchanged.
func (Noop) Decrypt(value string) (string, error) {
	return value, nil
}

// Verify interface compliance.
var (
	_ Decrypter = (*SecretBox)(nil)
	_ Decrypter = Noop{}
)
