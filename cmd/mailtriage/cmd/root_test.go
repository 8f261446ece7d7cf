package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/app"
	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/store"
)

// writeConfig creates a config file pointing at a fresh database and
// returns both paths.
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "mailtriage.db")

	key, err := credential.GenerateKey()
	require.NoError(t, err)

	cfgPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`database:
  path: %s
ai:
  embeddings_enabled: false
log:
  level: error
credential:
  key: %s
`, dbPath, key)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, dbPath
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	svc = nil
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestTagAddCreatesDatabaseAndTag(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	require.NoError(t, execute(t, "--config", cfgPath, "tag", "add", "Legal & Compliance", "--description", "contracts and audits"))
	require.NoError(t, execute(t, "--config", cfgPath, "tag", "list"))

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	tags, err := s.GetTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "legal-compliance", tags[0].Slug)
	assert.Equal(t, "contracts and audits", tags[0].Description)
}

func TestAccountDisableUnknown(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	err := execute(t, "--config", cfgPath, "account", "disable", "ghost@example.com")
	assert.ErrorContains(t, err, "ghost@example.com")
}

func TestQueueNextOnEmptyQueue(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	assert.NoError(t, execute(t, "--config", cfgPath, "queue", "next"))
}

func TestBodyFlag(t *testing.T) {
	t.Cleanup(func() { queueBody, queueBodyFile = "", "" })

	queueBody, queueBodyFile = "", ""
	_, err := bodyFlag(true)
	assert.Error(t, err)

	body, err := bodyFlag(false)
	require.NoError(t, err)
	assert.Empty(t, body)

	path := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(path, []byte("From file."), 0o600))
	queueBody, queueBodyFile = "ignored", path
	body, err = bodyFlag(true)
	require.NoError(t, err)
	assert.Equal(t, "From file.", body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestAccountFormValidators(t *testing.T) {
	required := validateRequired("Password")
	assert.EqualError(t, required("  "), "Password is required")
	assert.NoError(t, required("s3cret"))

	for _, ok := range []string{"", "993", " 587 "} {
		assert.NoError(t, validateOptionalPort(ok), ok)
	}
	for _, bad := range []string{"imap", "0", "70000", "-1"} {
		assert.Error(t, validateOptionalPort(bad), bad)
	}

	in := app.AccountInput{Email: "me@corp.example", Provider: "custom"}
	assert.NotNil(t, accountForm(&in, true))
}

func TestReadPasswordLine(t *testing.T) {
	pw, err := readPasswordLine(strings.NewReader("hunter2\r\nrest"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	pw, err = readPasswordLine(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)

	_, err = readPasswordLine(strings.NewReader(""))
	assert.Error(t, err)
}
