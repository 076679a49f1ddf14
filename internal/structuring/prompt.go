package structuring

import (
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zombor/receipt-extract/internal/ocr"
)

// receiptSchema is the JSON schema every response must satisfy
const receiptSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["vendor", "items", "subtotal", "tax", "total", "category", "confidence"],
  "properties": {
    "vendor": {"type": "string"},
    "date": {"type": ["string", "null"], "format": "date"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["description", "quantity", "unit_price", "subtotal", "confidence"],
        "properties": {
          "description": {"type": "string"},
          "quantity": {"type": "number"},
          "unit_price": {"type": "number"},
          "subtotal": {"type": "number"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "subtotal": {"type": "number"},
    "tax": {"type": "number"},
    "total": {"type": "number"},
    "currency": {"type": "string", "default": "USD"},
    "category": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "notes": {"type": ["string", "null"]}
  }
}`

const systemPrompt = `You are a receipt data extraction system. Convert the OCR text you are given into a single JSON object matching this JSON schema:

` + receiptSchema + `

Rules:
- Return only the JSON object. Do not include any extra commentary and do not use markdown code blocks.
- The date must be in YYYY-MM-DD format, or null if the receipt has no date.
- Amounts are numbers (not strings) in the receipt's currency. Currency is an ISO 4217 code.
- category is a short spending category such as "groceries", "dining", "fuel", "pharmacy", "travel" or "office".
- confidence fields are between 0 and 1 and reflect how certain you are the values match the receipt.
- Use an empty items array when no line items can be read.`

// responseFormat asks OpenAI-compatible endpoints for structured output in
// the receipt shape. Strict mode is off because it cannot express the
// nullable date and notes; parseReceiptJSON still enforces the shape.
func responseFormat() *openai.ResponseFormat {
	type property = openai.ResponseFormatJSONSchemaProperty
	number := func(description string) *property {
		return &property{Type: "number", Description: description}
	}
	text := func(description string) *property {
		return &property{Type: "string", Description: description}
	}

	item := &property{
		Type: "object",
		Properties: map[string]*property{
			"description": text("item name as printed"),
			"quantity":    number("units purchased"),
			"unit_price":  number("price per unit"),
			"subtotal":    number("line total"),
			"confidence":  number("0 to 1"),
		},
		Required: itemRequired,
	}

	return &openai.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openai.ResponseFormatJSONSchema{
			Name: "structured_receipt",
			Schema: &property{
				Type: "object",
				Properties: map[string]*property{
					"vendor":     text("merchant name"),
					"date":       text("YYYY-MM-DD, or null when the receipt has no date"),
					"items":      {Type: "array", Items: item},
					"subtotal":   number("total before tax"),
					"tax":        number("tax amount"),
					"total":      number("amount paid"),
					"currency":   text("ISO 4217 code, default USD"),
					"category":   text("short spending category"),
					"confidence": number("0 to 1"),
					"notes":      text("anything notable, or null"),
				},
				Required: receiptRequired,
			},
		},
	}
}

// buildMessages renders the chat request for one OCR result
func buildMessages(raw *ocr.RawText) []llms.MessageContent {
	userText := raw.FullText
	if userText == "" {
		userText = strings.Join(raw.Lines, "\n")
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userText),
	}
}
