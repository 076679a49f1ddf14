package imaging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
)

// Hash returns the hex SHA-256 of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Unique is an image that survived deduplication
type Unique struct {
	Image Image
	Hash  string
	// Position is the image's index in the slice passed to Dedupe
	Position int
}

// Deduper drops images whose content was already seen. A Deduper is scoped
// to a single batch; create a new one per batch so resubmitted receipts
// are processed again.
type Deduper struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	logger *slog.Logger
}

// NewDeduper creates an empty Deduper
func NewDeduper(logger *slog.Logger) *Deduper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduper{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Add records hash and reports whether it was new
func (d *Deduper) Add(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[hash]; ok {
		return false
	}
	d.seen[hash] = struct{}{}
	return true
}

// Dedupe returns images in first-occurrence order with exact duplicates
// removed. Dropped duplicates are logged, not reported as errors.
func (d *Deduper) Dedupe(images []Image) []Unique {
	kept := make([]Unique, 0, len(images))
	for i, img := range images {
		hash := Hash(img.Data)
		if !d.Add(hash) {
			d.logger.Info("Skipping duplicate image in batch", "position", i, "page", img.Page)
			continue
		}
		kept = append(kept, Unique{Image: img, Hash: hash, Position: i})
	}
	return kept
}
