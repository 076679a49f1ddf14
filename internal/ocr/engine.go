// Package ocr turns receipt images into engine-agnostic raw text. Engines
// are interchangeable behind the Engine interface; Fallback composes two of
// them so a failing local engine can hand off to a remote one.
package ocr

import (
	"context"
	"io"
	"strings"
)

// RawText is the OCR output for one image
type RawText struct {
	FullText string   `json:"full_text"`
	Lines    []string `json:"lines"`
	EngineID string   `json:"engine_id"`
	Language string   `json:"language_hint,omitempty"`
}

// Engine extracts text from an encoded image. Implementations must not log
// image content or extracted text.
type Engine interface {
	ExtractText(ctx context.Context, image []byte, filenameHint string) (*RawText, error)
}

// EngineCloser is an Engine holding resources that must be released
type EngineCloser interface {
	Engine
	io.Closer
}

// newRawText normalizes line endings and drops blank lines so every engine
// produces the same shape
func newRawText(engineID, language, text string) *RawText {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(normalized, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return &RawText{
		FullText: strings.TrimSpace(normalized),
		Lines:    lines,
		EngineID: engineID,
		Language: language,
	}
}
