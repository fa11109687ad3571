// Package redact scrubs sensitive fragments from strings before they reach
// logs. Unexpected errors bubbling out of storage layers can embed
// connection strings, SQL text, or tokens; the translator boundary redacts
// them before logging.
package redact

import "regexp"

// Redaction placeholders.
const (
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	KeyPlaceholder        = "[REDACTED_KEY]"
	PathPlaceholder       = "[REDACTED_PATH]"
)

var (
	// Connection strings with embedded credentials.
	connStringRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|db|database)://[^@\s]+@`)

	// Password-like key/value fragments.
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]['"]?)[^'"&\s]{3,}`)

	// API keys, tokens and secrets.
	apiKeyRegex = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`)

	// Three-part base64url JWT tokens.
	jwtRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	// SQL statement fragments surfaced by driver errors.
	sqlRegex = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`)

	// Absolute filesystem paths.
	pathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	// Host:port endpoints.
	hostPortRegex = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`)

	replacements = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{connStringRegex, CredentialPlaceholder},
		{passwordRegex, CredentialPlaceholder},
		// JWTs before the generic key pattern, which would otherwise
		// consume a token preceded by a trigger word.
		{jwtRegex, "[REDACTED_JWT]"},
		{apiKeyRegex, KeyPlaceholder},
		{sqlRegex, "[REDACTED_SQL]"},
		{pathRegex, PathPlaceholder},
		{hostPortRegex, "[REDACTED_HOST]"},
	}
)

// String redacts sensitive fragments from the input.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range replacements {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts an error's text. A nil error yields an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
