package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCurrency is used when the extraction does not name a currency
const DefaultCurrency = "USD"

const dateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form. It never
// carries the rejected value, which is extracted receipt text.
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// Date is a calendar date serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate returns the calendar date for year, month and day in UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO 8601 calendar date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the date in YYYY-MM-DD form
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineItem is a single purchased item on a receipt
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
	Confidence  float64 `json:"confidence"`
}

// StructuredReceipt is the validated output of the structuring step.
// It is treated as a value once created.
type StructuredReceipt struct {
	Vendor     string     `json:"vendor"`
	Date       *Date      `json:"date"`
	Items      []LineItem `json:"items"`
	Subtotal   float64    `json:"subtotal"`
	Tax        float64    `json:"tax"`
	Total      float64    `json:"total"`
	Currency   string     `json:"currency"`
	Category   string     `json:"category"`
	Confidence float64    `json:"confidence"`
	Notes      *string    `json:"notes"`
}

// Validate checks the confidence bounds of the receipt and its items
func (r *StructuredReceipt) Validate() error {
	if !inUnitRange(r.Confidence) {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if r.Items == nil {
		return fmt.Errorf("items must be present")
	}
	for i, item := range r.Items {
		if !inUnitRange(item.Confidence) {
			return fmt.Errorf("item %d confidence %v out of range [0,1]", i, item.Confidence)
		}
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// Record is a stored receipt together with its provenance
type Record struct {
	ID            string            `json:"id"`
	BatchID       string            `json:"batch_id"`
	SourceLocator string            `json:"source_locator"`
	NeedsReview   bool              `json:"needs_review"`
	Receipt       StructuredReceipt `json:"receipt"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Batch is the stored summary of one batch run
type Batch struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	Processed     int       `json:"processed"`
	Failed        int       `json:"failed"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
