package imaging

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind is the declared format of an uploaded source document
type Kind string

const (
	KindUnknown Kind = ""
	KindPDF     Kind = "pdf"
	KindPNG     Kind = "png"
	KindJPEG    Kind = "jpeg"
	KindGIF     Kind = "gif"
	KindWebP    Kind = "webp"
	KindTIFF    Kind = "tiff"
	KindBMP     Kind = "bmp"
	KindHEIC    Kind = "heic"
)

// KindFromFilename maps a file extension to a Kind
func KindFromFilename(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".png":
		return KindPNG
	case ".jpg", ".jpeg":
		return KindJPEG
	case ".gif":
		return KindGIF
	case ".webp":
		return KindWebP
	case ".tif", ".tiff":
		return KindTIFF
	case ".bmp":
		return KindBMP
	case ".heic", ".heif":
		return KindHEIC
	default:
		return KindUnknown
	}
}

// KindFromContentType maps a MIME type to a Kind
func KindFromContentType(contentType string) Kind {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "application/pdf":
		return KindPDF
	case "image/png":
		return KindPNG
	case "image/jpeg", "image/jpg":
		return KindJPEG
	case "image/gif":
		return KindGIF
	case "image/webp":
		return KindWebP
	case "image/tiff":
		return KindTIFF
	case "image/bmp":
		return KindBMP
	case "image/heic", "image/heif":
		return KindHEIC
	default:
		return KindUnknown
	}
}

// Detect sniffs the kind of data from its leading bytes
func Detect(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF
	case isHEICFormat(data):
		return KindHEIC
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return KindPNG
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return KindJPEG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return KindGIF
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return KindWebP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return KindTIFF
	case bytes.HasPrefix(data, []byte("BM")):
		return KindBMP
	default:
		return KindUnknown
	}
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with a HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heix" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}
