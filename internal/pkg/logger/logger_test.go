package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactPII(true)
	})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"jane.doe@example.com", "ja***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"@example.com", "***@***"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.input))
	}
}

func TestLog_RedactsEmailFields(t *testing.T) {
	buf := capture(t)

	Info("unsubscribed", "email", "jane.doe@example.com", "tenant", "acme")

	entry := lastEntry(t, buf)
	assert.Equal(t, "ja***@example.com", entry["email"])
	assert.Equal(t, "acme", entry["tenant"])
}

func TestLog_RedactsEmbeddedEmails(t *testing.T) {
	buf := capture(t)

	Warn("delete failed", "err", "contact jane.doe@example.com not found")

	entry := lastEntry(t, buf)
	assert.NotContains(t, entry["err"], "jane.doe@example.com")
	assert.Contains(t, entry["err"], "ja***@example.com")
}

func TestLog_LevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("should be dropped")
	assert.Zero(t, buf.Len())

	Error("should be kept")
	entry := lastEntry(t, buf)
	assert.Equal(t, "ERROR", entry["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARN "))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
