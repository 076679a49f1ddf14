package ocr

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MaxImageBytes caps the image size sent to remote vision models. Base64
// requests are limited to 4MB; this leaves headroom for the prompt.
const MaxImageBytes = 3 * 1024 * 1024

// extractionPrompt asks a vision model for a plain transcription
const extractionPrompt = "Extract all text from this receipt image exactly as it appears. " +
	"Return only the raw text, no commentary or JSON."

// remoteConfig holds settings shared by engines that call a vision model
type remoteConfig struct {
	limiter  *rate.Limiter
	maxBytes int
	language string
	timeout  time.Duration
}

// RemoteOption configures a remote vision engine
type RemoteOption func(*remoteConfig)

// WithRateLimit caps calls to perSecond with the given burst
func WithRateLimit(perSecond float64, burst int) RemoteOption {
	return func(c *remoteConfig) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxImageBytes overrides MaxImageBytes
func WithMaxImageBytes(n int) RemoteOption {
	return func(c *remoteConfig) { c.maxBytes = n }
}

// WithLanguage sets the language hint reported on RawText
func WithLanguage(language string) RemoteOption {
	return func(c *remoteConfig) { c.language = language }
}

// WithTimeout bounds a single model call
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *remoteConfig) { c.timeout = d }
}

func newRemoteConfig(timeout time.Duration, opts []RemoteOption) remoteConfig {
	c := remoteConfig{
		maxBytes: MaxImageBytes,
		language: "eng",
		timeout:  timeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// admit enforces the size cap and waits for the rate limiter
func (c *remoteConfig) admit(ctx context.Context, engine string, image []byte) error {
	if c.maxBytes > 0 && len(image) > c.maxBytes {
		return &PayloadTooLargeError{Engine: engine, Size: len(image), Limit: c.maxBytes}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// imageFormat picks the image format suffix from the filename hint.
// Unrecognized extensions are sent as jpeg.
func imageFormat(filenameHint string) string {
	switch strings.ToLower(filepath.Ext(filenameHint)) {
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	case ".tif", ".tiff":
		return "tiff"
	case ".bmp":
		return "bmp"
	case ".heic", ".heif":
		return "heic"
	default:
		return "jpeg"
	}
}

// stripFences removes markdown code fences some models wrap output in
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
