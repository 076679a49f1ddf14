package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// PageDPI is the resolution PDF pages are rendered at
const PageDPI = 150

// Image is an encoded raster image ready for OCR
type Image struct {
	Data   []byte
	Format Kind
	// Source is the kind the image was normalized from
	Source Kind
	// Page is the zero-based PDF page the image was rendered from
	Page int
}

// Hint returns a filename for the image derived from the source locator.
// The extension always names the image's own format: rendered PDF pages get
// a per-page .png name and converted images (HEIC to PNG) are renamed.
func (img Image) Hint(locator string) string {
	base := strings.TrimSuffix(locator, filepath.Ext(locator))
	switch {
	case img.Source == KindPDF:
		return fmt.Sprintf("%s-page-%d.png", base, img.Page+1)
	case img.Format == KindUnknown || img.Format == KindFromFilename(locator):
		return locator
	default:
		return base + "." + string(img.Format)
	}
}

// Normalize turns source bytes into the raster images OCR runs on. A PDF
// yields one PNG per page, HEIC is converted to PNG because OCR engines
// cannot read it, and every other raster kind is returned unchanged once
// its header decodes as the declared kind. An unknown kind is sniffed.
func Normalize(data []byte, kind Kind) ([]Image, error) {
	if kind == KindUnknown {
		kind = Detect(data)
	}

	switch kind {
	case KindUnknown:
		return nil, &DecodeError{Kind: kind, Err: errors.New("unsupported format. Supported formats: JPEG, PNG, GIF, WebP, TIFF, BMP, HEIC, HEIF, PDF")}
	case KindPDF:
		pages, err := pdfToImages(data)
		if err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
		return pages, nil
	case KindHEIC:
		pngData, err := heicToPNG(data)
		if err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
		return []Image{{Data: pngData, Format: KindPNG, Source: KindHEIC}}, nil
	default:
		if err := checkRaster(data, kind); err != nil {
			return nil, &DecodeError{Kind: kind, Err: err}
		}
		return []Image{{Data: data, Format: kind, Source: kind}}, nil
	}
}

// pdfToImages renders every page of a PDF to PNG
func pdfToImages(pdfData []byte) ([]Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, errors.New("PDF has no pages")
	}

	images := make([]Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.ImageDPI(i, PageDPI)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG for page %d: %w", i+1, err)
		}
		images = append(images, Image{Data: buf.Bytes(), Format: KindPNG, Source: KindPDF, Page: i})
	}

	return images, nil
}

// heicToPNG converts a HEIC/HEIF photo to PNG
func heicToPNG(imageData []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// checkRaster decodes the image header and confirms it matches kind
func checkRaster(data []byte, kind Kind) error {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}
	if Kind(format) != kind {
		return fmt.Errorf("declared %s but found %s", kind, format)
	}
	return nil
}
