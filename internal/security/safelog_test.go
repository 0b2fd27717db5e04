package security

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		secret  string
		keepsIn string
	}{
		{"openai key", "Incorrect API key provided: sk-proj-abcdefghijklmnopqrstuvwxyz0123", "abcdefghijklmnopqrstuvwxyz", "Incorrect API key provided"},
		{"anthropic key", "auth failed for sk-ant-REDACTED", "ABCDEFGHIJKLMNOPQRSTUV", "auth failed for"},
		{"google key in url", "GET https://generativelanguage.googleapis.com/v1?key=AIzaSyA1234567890abcdefghijklmnopqrstu: 403", "AIzaSyA1234567890abcdefghijklmnopqrstu", "generativelanguage"},
		{"bearer header", "Authorization: Bearer abcdef123456789xyz", "abcdef123456789xyz", "Authorization"},
		{"plain text", "status 503 service unavailable", "", "status 503 service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Redact(tt.input)
			if tt.secret != "" {
				assert.NotContains(t, out, tt.secret)
				assert.True(t, ContainsSensitiveData(tt.input))
			} else {
				assert.Equal(t, tt.input, out)
			}
			assert.Contains(t, out, tt.keepsIn)
		})
	}
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "***", MaskCredential("abc"))
	assert.Equal(t, "ab****", MaskCredential("abcdef"))
	assert.Equal(t, "sk-a****wxyz", MaskCredential("sk-a1234wxyz"))
}

func TestRedactErrorKeepsChain(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("call with key=sk-abcdefghijklmnopqrstuvwxyz: %w", base)

	red := RedactError(err)
	assert.ErrorIs(t, red, base)
	assert.NotContains(t, red.Error(), "abcdefghijklmnopqrstuvwxyz")
	assert.Same(t, red, RedactError(red))
	assert.Nil(t, RedactError(nil))
}

func TestSafeErr(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SafeErr(logger.Error(), errors.New("bad key sk-abcdefghijklmnopqrstuvwxyz")).Msg("attempt failed")
	assert.NotContains(t, buf.String(), "abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, buf.String(), "attempt failed")
}
