package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	orig := openKeyring
	openKeyring = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openKeyring = orig })
}

func TestSecretBoxRoundTrip(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)
	key, err := ParseKey(encoded)
	require.NoError(t, err)

	box := NewSecretBox(key)
	token, err := box.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, token, "hunter2")

	plain, err := box.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	again, err := box.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, token, again)
}

func TestSecretBoxWrongKey(t *testing.T) {
	var k1, k2 [KeySize]byte
	k2[0] = 1

	token, err := NewSecretBox(k1).Encrypt("secret")
	require.NoError(t, err)

	_, err = NewSecretBox(k2).Decrypt(token)
	var decErr *DecryptError
	assert.True(t, errors.As(err, &decErr))

	_, err = NewSecretBox(k1).Decrypt("!!!")
	assert.True(t, errors.As(err, &decErr))

	_, err = NewSecretBox(k1).Decrypt("AAAA")
	assert.True(t, errors.As(err, &decErr))
}

func TestParseKeyRejectsBadInput(t *testing.T) {
	var cfgErr *ConfigError

	_, err := ParseKey("not base64 at all")
	assert.True(t, errors.As(err, &cfgErr))

	_, err = ParseKey("c2hvcnQ=")
	assert.True(t, errors.As(err, &cfgErr))
}

func TestMasterKeyMissing(t *testing.T) {
	_, err := MasterKey(model.CredentialConfig{})
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestMasterKeyFromKeyring(t *testing.T) {
	useArrayKeyring(t)

	_, err := MasterKey(model.CredentialConfig{UseKeyring: true})
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))

	created, err := EnsureKeyringKey()
	require.NoError(t, err)

	loaded, err := MasterKey(model.CredentialConfig{UseKeyring: true})
	require.NoError(t, err)
	assert.Equal(t, created, loaded)

	again, err := EnsureKeyringKey()
	require.NoError(t, err)
	assert.Equal(t, created, again)
}

func TestKeyringSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	require.NoError(t, Set("k", "v"))
	got, err := Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, Delete("k"))
	_, err = Get("k")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}
