package batch

import (
	"context"
	"log/slog"
)

// Notifier is told when a batch finishes without errors
type Notifier interface {
	BatchComplete(ctx context.Context, batchID string) error
}

// LogNotifier logs batch completion
type LogNotifier struct {
	Logger *slog.Logger
}

// BatchComplete implements Notifier
func (n LogNotifier) BatchComplete(ctx context.Context, batchID string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Batch processing complete", "batch_id", batchID)
	return nil
}
