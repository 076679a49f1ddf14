package ocr

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config selects and configures the OCR engine for a deployment
type Config struct {
	// Engine is "tesseract", "gemini" or "ollama"
	Engine      string
	Language    string
	GeminiKey   string
	GeminiModel string
	OllamaURL   string
	OllamaModel string
	// RateLimit caps remote calls per second; zero disables limiting
	RateLimit float64
	// MaxImageBytes overrides the remote input cap when positive
	MaxImageBytes int
	// Timeout overrides the per-call remote timeout when positive
	Timeout time.Duration
}

// NewEngine resolves cfg to a single engine. Tesseract is paired with
// Gemini as a fallback whenever a Gemini key is configured.
func NewEngine(cfg Config, logger *slog.Logger) (EngineCloser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	remoteOpts := []RemoteOption{
		WithLanguage(language),
		WithRateLimit(cfg.RateLimit, 1),
	}
	if cfg.MaxImageBytes > 0 {
		remoteOpts = append(remoteOpts, WithMaxImageBytes(cfg.MaxImageBytes))
	}
	if cfg.Timeout > 0 {
		remoteOpts = append(remoteOpts, WithTimeout(cfg.Timeout))
	}

	switch strings.ToLower(cfg.Engine) {
	case "", "tesseract":
		tesseract := NewTesseract(language)
		if cfg.GeminiKey == "" {
			return tesseract, nil
		}
		gemini, err := NewGemini(cfg.GeminiKey, cfg.GeminiModel, remoteOpts...)
		if err != nil {
			return nil, err
		}
		logger.Info("Tesseract OCR with Gemini fallback", "model", cfg.GeminiModel)
		return NewFallback(tesseract, gemini, logger.With("component", "ocr-fallback")), nil
	case "gemini":
		gemini, err := NewGemini(cfg.GeminiKey, cfg.GeminiModel, remoteOpts...)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case "ollama":
		ollama, err := NewOllama(cfg.OllamaURL, cfg.OllamaModel, remoteOpts...)
		if err != nil {
			return nil, err
		}
		return ollama, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (valid: tesseract, gemini, ollama)", cfg.Engine)
	}
}
