package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSensitiveKey tests blacklist matching on field keys
func TestSensitiveKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sensitive bool
	}{
		{name: "plain password", key: "password", sensitive: true},
		{name: "uppercase", key: "PASSWORD", sensitive: true},
		{name: "mixed case", key: "Authorization", sensitive: true},
		{name: "substring match", key: "user_password", sensitive: true},
		{name: "token", key: "access_token", sensitive: true},
		{name: "api key underscore", key: "api_key", sensitive: true},
		{name: "api key joined", key: "apikey", sensitive: true},
		{name: "webhook signature", key: "webhook_signature", sensitive: true},
		{name: "credential", key: "proxy_credential", sensitive: true},
		{name: "cookie", key: "session_cookie", sensitive: true},
		{name: "secret", key: "client_secret", sensitive: true},
		{name: "plain field", key: "email", sensitive: false},
		{name: "workspace id", key: "workspace_id", sensitive: false},
		{name: "empty key", key: "", sensitive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sensitive, SensitiveKey(tt.key))
		})
	}
}

// TestRedact tests recursive redaction of nested structures
func TestRedact(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]any
	}{
		{
			name:     "top level secret",
			input:    map[string]any{"password": "hunter2", "email": "a@x.test"},
			expected: map[string]any{"password": Redacted, "email": "a@x.test"},
		},
		{
			name: "nested map",
			input: map[string]any{
				"request": map[string]any{
					"token": "abc123",
					"path":  "/api/auth/login",
				},
			},
			expected: map[string]any{
				"request": map[string]any{
					"token": Redacted,
					"path":  "/api/auth/login",
				},
			},
		},
		{
			name: "array of maps",
			input: map[string]any{
				"headers": []any{
					map[string]any{"Authorization": "Bearer x"},
					map[string]any{"Accept": "application/json"},
				},
			},
			expected: map[string]any{
				"headers": []any{
					map[string]any{"Authorization": Redacted},
					map[string]any{"Accept": "application/json"},
				},
			},
		},
		{
			name: "string map values",
			input: map[string]any{
				"meta": map[string]string{"api_key": "k-123", "plan": "basic"},
			},
			expected: map[string]any{
				"meta": map[string]any{"api_key": Redacted, "plan": "basic"},
			},
		},
		{
			name:     "empty map",
			input:    map[string]any{},
			expected: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Redact(tt.input))
		})
	}
}

// TestRedactDoesNotMutateInput tests that redaction copies instead of
// rewriting the caller's map
func TestRedactDoesNotMutateInput(t *testing.T) {
	nested := map[string]any{"secret": "s3cret"}
	input := map[string]any{"payload": nested}

	_ = Redact(input)

	assert.Equal(t, "s3cret", nested["secret"])
}

// TestEmittedLogContainsNoSecret tests the end-to-end property: no value
// under a blacklisted key survives into the emitted record
func TestEmittedLogContainsNoSecret(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	fields := map[string]any{
		"email":    "a@x.test",
		"password": "Abcd1234!",
		"body": map[string]any{
			"webhook_signature": "deadbeef",
			"event":             "subscription.activated",
		},
	}

	Fields(Logger.Info(), fields).Msg("request received")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "Abcd1234!")
	assert.NotContains(t, out, "deadbeef")
	assert.Contains(t, out, Redacted)
	assert.Contains(t, out, "subscription.activated")
	assert.Contains(t, out, "a@x.test")
}

// TestPrefix tests secret prefix truncation
func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcd1234", Prefix("abcd1234ef567890", 8))
	assert.Equal(t, "short", Prefix("short", 8))
	assert.Equal(t, "", Prefix("", 8))
}
