// Package security masks API keys before they reach logs or HTTP responses.
package security

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// sensitivePatterns contains regex patterns for credentials that providers
// tend to echo back in error messages.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|x-goog-api-key|secret[_-]?key|access[_-]?token|password|key)[=:]\s*["']?([^\s"'&]+)["']?`),
	regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9._\-]{8,})`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{16,}`), // Anthropic keys
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),     // OpenAI and DeepSeek keys
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{30,}`),    // Google keys
}

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// ContainsSensitiveData reports whether input looks like it carries a key.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// Redact masks every credential-looking substring of input.
func Redact(input string) string {
	result := input

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			for _, sep := range []string{"=", ":"} {
				if parts := strings.SplitN(match, sep, 2); len(parts) == 2 {
					return parts[0] + sep + MaskCredential(strings.Trim(parts[1], "\"' "))
				}
			}
			if fields := strings.Fields(match); len(fields) == 2 {
				return fields[0] + " " + MaskCredential(fields[1])
			}
			return MaskCredential(match)
		})
	}

	return result
}

// redactedError keeps the original chain for errors.Is while printing a
// masked message.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// RedactError returns err with a masked message. It is nil for nil.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*redactedError); ok {
		return err
	}
	return &redactedError{msg: Redact(err.Error()), err: err}
}

// SafeErr adds err to the event with credentials masked.
func SafeErr(event *zerolog.Event, err error) *zerolog.Event {
	if err == nil {
		return event
	}
	return event.Str(zerolog.ErrorFieldName, Redact(err.Error()))
}
