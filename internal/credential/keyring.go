package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/mail-triage/internal/model"
)

const (
	serviceName   = "mailtriage"
	masterKeyName = "master-key"
)

// openKeyring returns a configured keyring instance.
var openKeyring = func() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailtriage/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailtriage-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "mailtriage " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// MasterKey resolves the encryption key. An explicit cfg.Key wins; otherwise
// the key is read from the OS keyring when cfg.UseKeyring is set. No key at
// all is a *ConfigError.
func MasterKey(cfg model.CredentialConfig) ([KeySize]byte, error) {
	if cfg.Key != "" {
		return ParseKey(cfg.Key)
	}
	if !cfg.UseKeyring {
		return [KeySize]byte{}, &ConfigError{Reason: "no master key configured (set credential.key or enable credential.use_keyring)"}
	}

	encoded, err := Get(masterKeyName)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return [KeySize]byte{}, &ConfigError{Reason: "master key not found in keyring (run `mailtriage account add` to create one)"}
	}
	if err != nil {
		return [KeySize]byte{}, err
	}
	return ParseKey(encoded)
}

// EnsureKeyringKey stores a freshly generated master key in the keyring
// unless one is already present, and returns the key in effect.
func EnsureKeyringKey() ([KeySize]byte, error) {
	encoded, err := Get(masterKeyName)
	if err == nil {
		return ParseKey(encoded)
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return [KeySize]byte{}, err
	}

	encoded, err = GenerateKey()
	if err != nil {
		return [KeySize]byte{}, err
	}
	if err := Set(masterKeyName, encoded); err != nil {
		return [KeySize]byte{}, err
	}
	return ParseKey(encoded)
}
