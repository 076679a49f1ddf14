package ocr

import (
	"context"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine using a local Tesseract installation
type Tesseract struct {
	language string
}

// NewTesseract creates a Tesseract engine. language is a Tesseract
// language code such as "eng"; it defaults to "eng".
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}
}

// ExtractText runs OCR on the image in memory
func (t *Tesseract) ExtractText(ctx context.Context, image []byte, filenameHint string) (*RawText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, &UnavailableError{Engine: "tesseract", Err: err}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, &UnavailableError{Engine: "tesseract", Err: err}
	}
	text, err := client.Text()
	if err != nil {
		return nil, &UnavailableError{Engine: "tesseract", Err: err}
	}

	return newRawText("tesseract", t.language, text), nil
}

// Close is a no-op; clients are created per call
func (t *Tesseract) Close() error {
	return nil
}
