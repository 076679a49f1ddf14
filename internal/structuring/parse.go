package structuring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zombor/receipt-extract/internal/receipt"
)

var (
	receiptRequired = []string{"vendor", "items", "subtotal", "tax", "total", "category", "confidence"}
	receiptOptional = []string{"date", "currency", "notes"}
	itemRequired    = []string{"description", "quantity", "unit_price", "subtotal", "confidence"}
)

// parseReceiptJSON strictly parses a model response into a receipt.
// Missing required fields, unknown fields and out of range confidences are
// errors; nothing is coerced.
func parseReceiptJSON(text string) (*receipt.StructuredReceipt, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, errors.New("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, errors.New("invalid JSON object in response")
	}
	data := []byte(text[startIdx : endIdx+1])

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := checkFields("receipt", fields, receiptRequired, receiptOptional); err != nil {
		return nil, err
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(fields["items"], &items); err != nil {
		return nil, fmt.Errorf("items must be an array of objects: %w", err)
	}
	for i, item := range items {
		if err := checkFields(fmt.Sprintf("item %d", i), item, itemRequired, nil); err != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r receipt.StructuredReceipt
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}

	r.Vendor = strings.TrimSpace(r.Vendor)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = receipt.DefaultCurrency
	}
	if r.Notes != nil && strings.TrimSpace(*r.Notes) == "" {
		r.Notes = nil
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validating receipt: %w", err)
	}
	return &r, nil
}

// checkFields rejects unknown keys and missing or null required keys
func checkFields(what string, fields map[string]json.RawMessage, required, optional []string) error {
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}

	var unknown []string
	for k := range fields {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%s has unexpected fields: %s", what, strings.Join(unknown, ", "))
	}

	for _, k := range required {
		v, ok := fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("%s is missing required field %q", what, k)
		}
	}
	return nil
}
