package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const mimePDF = "application/pdf"

// DecodeImage decodes a photo or the first page of a PDF.
// Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF.
func DecodeImage(data []byte, contentType string) (image.Image, error) {
	mimeType := normalizeMimeType(contentType)

	switch {
	case mimeType == mimePDF:
		return decodePDF(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		// Go's standard image package doesn't support HEIC (common on iPhones)
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// decodePDF renders the first page; scanned documents are almost always
// single page
func decodePDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

// prepareImageData converts anything that isn't already PNG to PNG.
// Returns the image data, its MIME type and whether conversion occurred.
func prepareImageData(data []byte, contentType string) ([]byte, string, bool, error) {
	mimeType := normalizeMimeType(contentType)
	if mimeType == "image/png" && !isHEICFormat(data) {
		return data, mimeType, false, nil
	}

	img, err := DecodeImage(data, mimeType)
	if err != nil {
		return nil, "", false, fmt.Errorf("converting to PNG: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", false, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), "image/png", true, nil
}
