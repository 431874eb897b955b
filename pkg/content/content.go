// Package content implements the TypedPayload values the content
// service stores: documents (PDF, Markdown, plain text) and images
// (JPEG, PNG), with magic-byte / encoding validation on construction.
package content

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidContent indicates magic-byte validation, size, encoding, or
// allowed-type checks failed.
type ErrInvalidContent struct {
	Detail string
}

func (e ErrInvalidContent) Error() string {
	return fmt.Sprintf("invalid content: %s", e.Detail)
}

// Format names the accepted document/image encodings.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJPEG     Format = "jpeg"
	FormatPNG      Format = "png"
)

// ParseDocumentFormat maps the caller-supplied format string, including
// the accepted aliases, to a canonical document Format.
func ParseDocumentFormat(s string) (Format, bool) {
	switch s {
	case "pdf":
		return FormatPDF, true
	case "markdown", "md":
		return FormatMarkdown, true
	case "text", "txt":
		return FormatText, true
	}
	return "", false
}

// ParseImageFormat maps the caller-supplied format string, including the
// accepted aliases, to a canonical image Format.
func ParseImageFormat(s string) (Format, bool) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	}
	return "", false
}

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

func validatePDF(data []byte) error {
	if !bytes.HasPrefix(data, pdfMagic) {
		return ErrInvalidContent{Detail: "missing PDF magic bytes"}
	}
	return nil
}

func validateUTF8(data []byte) error {
	if !utf8.Valid(data) {
		return ErrInvalidContent{Detail: "content is not valid UTF-8"}
	}
	return nil
}

func validatePNG(data []byte) error {
	if !bytes.HasPrefix(data, pngMagic) {
		return ErrInvalidContent{Detail: "missing PNG magic bytes"}
	}
	return nil
}

func validateJPEG(data []byte) error {
	if !bytes.HasPrefix(data, jpegMagic) {
		return ErrInvalidContent{Detail: "missing JPEG magic bytes"}
	}
	return nil
}
