package log

import (
	"strings"

	"github.com/rs/zerolog"
)

// Redacted is the sentinel emitted in place of secret values.
const Redacted = "[REDACTED]"

// blacklist holds lowercase substrings; any field key containing one of
// them is treated as secret material.
var blacklist = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"signature",
	"credential",
	"cookie",
}

// SensitiveKey reports whether a field key names secret material.
func SensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range blacklist {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Redact returns a deep copy of fields with every value under a sensitive
// key replaced by the Redacted sentinel. Nested maps and arrays are
// descended so a secret cannot hide inside a payload value.
func Redact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if SensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Redact(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			if SensitiveKey(k) {
				out[k] = Redacted
			} else {
				out[k] = s
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = redactValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Redact(e)
		}
		return out
	default:
		return v
	}
}

// Fields attaches a redacted copy of fields to a zerolog event. All
// map-shaped logging goes through this helper so a careless call site
// cannot leak a secret.
func Fields(e *zerolog.Event, fields map[string]any) *zerolog.Event {
	return e.Fields(Redact(fields))
}

// Prefix returns the first n characters of a secret for correlation in
// logs. The remainder is never emitted.
func Prefix(secret string, n int) string {
	if len(secret) <= n {
		return secret
	}
	return secret[:n]
}
