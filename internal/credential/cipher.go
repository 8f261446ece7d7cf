package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the length of a master key in bytes.
const KeySize = 32

const nonceSize = 24

// Cipher protects mailbox passwords at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// SecretBox is a Cipher backed by NaCl secretbox (XSalsa20-Poly1305).
// Tokens are URL-safe base64 of nonce||box.
type SecretBox struct {
	key [KeySize]byte
}

var _ Cipher = (*SecretBox)(nil)

// NewSecretBox returns a cipher using key.
func NewSecretBox(key [KeySize]byte) *SecretBox {
	return &SecretBox{key: key}
}

// Encrypt seals plaintext under a fresh random nonce.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt.
func (b *SecretBox) Decrypt(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", &DecryptError{Err: fmt.Errorf("decoding token: %w", err)}
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", &DecryptError{Err: errors.New("token too short")}
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", &DecryptError{Err: errors.New("authentication failed")}
	}
	return string(plain), nil
}

// GenerateKey returns a new random master key in its base64 text form.
func GenerateKey() (string, error) {
	var key [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// ParseKey decodes a base64 master key.
func ParseKey(encoded string) ([KeySize]byte, error) {
	var key [KeySize]byte
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return key, &ConfigError{Reason: "master key is not valid base64"}
	}
	if len(raw) != KeySize {
		return key, &ConfigError{Reason: fmt.Sprintf("master key must be %d bytes, got %d", KeySize, len(raw))}
	}
	copy(key[:], raw)
	return key, nil
}
