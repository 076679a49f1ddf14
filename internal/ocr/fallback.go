package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback tries a primary engine and hands the image to a secondary engine
// when the primary fails for any reason. The secondary's result or error is
// returned unmodified.
type Fallback struct {
	primary   Engine
	secondary Engine
	logger    *slog.Logger
}

// NewFallback composes primary and secondary
func NewFallback(primary, secondary Engine, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default().With("component", "ocr-fallback")
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// ExtractText implements Engine
func (f *Fallback) ExtractText(ctx context.Context, image []byte, filenameHint string) (*RawText, error) {
	text, err := f.primary.ExtractText(ctx, image, filenameHint)
	if err == nil {
		return text, nil
	}

	// Only the error class is logged; messages may echo engine output.
	f.logger.Warn("Primary OCR failed, using fallback", "error_type", fmt.Sprintf("%T", err))

	return f.secondary.ExtractText(ctx, image, filenameHint)
}

// Close closes both engines if they hold resources
func (f *Fallback) Close() error {
	var errs []error
	for _, e := range []Engine{f.primary, f.secondary} {
		if c, ok := e.(EngineCloser); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
