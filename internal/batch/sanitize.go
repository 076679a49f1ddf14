package batch

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxMessageLen caps error messages leaving the pipeline
const maxMessageLen = 200

var (
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	apiKeyPattern = regexp.MustCompile(`(?i)\b(gsk_|sk-)[A-Za-z0-9_-]{20,}`)
	googlePattern = regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`)
	keyParam      = regexp.MustCompile(`(?i)([?&](?:key|api_key|token)=)[^&\s"]+`)
)

// Sanitize redacts credentials from msg and truncates it
func Sanitize(msg string) string {
	msg = bearerPattern.ReplaceAllString(msg, "Bearer [redacted]")
	msg = apiKeyPattern.ReplaceAllString(msg, "${1}[redacted]")
	msg = googlePattern.ReplaceAllString(msg, "[redacted]")
	msg = keyParam.ReplaceAllString(msg, "${1}[redacted]")
	msg = strings.TrimSpace(msg)

	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
		for !utf8.ValidString(msg) {
			msg = msg[:len(msg)-1]
		}
	}
	if msg == "" {
		return "Extraction failed"
	}
	return msg
}
