// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or persisted in user-visible error messages. It prevents
// the leakage of provider API keys, webhook bearer tokens, store connection strings
// and signed file URLs that may appear in error messages.
package redact

import (
	"net/url"
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// Precompiled regex patterns, applied in order.
var patterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	// Store connection strings with credentials
	{regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss)://[^@\s]+@`), RedactedCredentialPlaceholder + "@"},
	// Bearer tokens in headers or messages
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.~+/=]{8,}`), "Bearer " + RedactedCredentialPlaceholder},
	// Provider API keys
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{30,}`), RedactedKeyPlaceholder},
	// Generic key=value secrets
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|signature|sig)([=:]\s*)[^\s&"']{4,}`), "${1}${2}" + RedactionPlaceholder},
	// JWT tokens
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	// Stack trace fragments
	{regexp.MustCompile(`(?:goroutine \d+)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// URL strips user info and the query string from a URL, which may carry
// signatures or tokens. Unparseable input is redacted entirely.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return RedactionPlaceholder
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = RedactionPlaceholder
	}
	u.Fragment = ""
	return u.String()
}
