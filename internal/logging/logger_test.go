package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(model.LogConfig{Level: "debug", Format: "json"}, &buf)

	log.WithField("account", "ops@example.com").Debug("polled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "polled", entry["msg"])
	assert.Equal(t, "ops@example.com", entry["account"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"warn", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewWithOutput(model.LogConfig{Level: tt.level}, &bytes.Buffer{})
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}
