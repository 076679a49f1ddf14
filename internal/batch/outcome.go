package batch

import (
	"github.com/zombor/receipt-extract/internal/imaging"
	"github.com/zombor/receipt-extract/internal/receipt"
)

// DefaultReviewThreshold flags receipts below this confidence for review
const DefaultReviewThreshold = 0.85

// Source is one uploaded document. Its kind is taken from Kind, then
// ContentType, then the locator's extension, and is sniffed from the bytes
// when none of them is recognized.
type Source struct {
	Locator     string       `json:"locator"`
	Kind        imaging.Kind `json:"kind,omitempty"`
	ContentType string       `json:"content_type,omitempty"`
}

func (s Source) kind() imaging.Kind {
	if s.Kind != imaging.KindUnknown {
		return s.Kind
	}
	if kind := imaging.KindFromContentType(s.ContentType); kind != imaging.KindUnknown {
		return kind
	}
	return imaging.KindFromFilename(s.Locator)
}

// Item is one surviving image in a batch run
type Item struct {
	// Index is the item's position among surviving images
	Index int
	// SourceIndex is the submission index of the source it came from
	SourceIndex int
	Locator     string
	Hash        string
	image       imaging.Image
}

// Result is a successfully structured item
type Result struct {
	Index       int                        `json:"index"`
	SourceIndex int                        `json:"source_index"`
	Locator     string                     `json:"locator"`
	Receipt     *receipt.StructuredReceipt `json:"receipt"`
	NeedsReview bool                       `json:"needs_review"`
}

// ItemError is a failed item
type ItemError struct {
	Index       int    `json:"index"`
	SourceIndex int    `json:"source_index"`
	Locator     string `json:"locator"`
	Message     string `json:"error"`
}

// SourceError is a source that could not be fetched or decoded
type SourceError struct {
	SourceIndex int    `json:"source_index"`
	Locator     string `json:"locator"`
	Message     string `json:"error"`
}

// Outcome is the result of one batch run. Every surviving item appears in
// exactly one of Results or Errors, both ordered by Index.
type Outcome struct {
	BatchID    string        `json:"batch_id"`
	State      State         `json:"state"`
	Results    []Result      `json:"results"`
	Errors     []ItemError   `json:"errors"`
	Rejected   []SourceError `json:"rejected"`
	Duplicates int           `json:"duplicates"`
	Error      string        `json:"error,omitempty"`
}

// NeedsReview reports whether confidence falls below threshold
func NeedsReview(confidence, threshold float64) bool {
	return confidence < threshold
}
