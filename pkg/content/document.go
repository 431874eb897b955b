package content

import "fmt"

const (
	codecPDF      uint64 = 0x600001
	codecMarkdown uint64 = 0x600002
	codecText     uint64 = 0x600003
)

// DocumentMetadata is caller-supplied descriptive metadata attached to a
// stored document.
type DocumentMetadata struct {
	Title string
	Tags  []string
}

// Document is a TypedPayload wrapping validated document bytes.
type Document struct {
	Format   Format
	Raw      []byte
	Metadata DocumentMetadata
}

// NewDocument validates data against format's constraints (PDF magic
// bytes; UTF-8 validity for Markdown/Text) and returns a Document.
func NewDocument(data []byte, metadata DocumentMetadata, format Format) (Document, error) {
	switch format {
	case FormatPDF:
		if err := validatePDF(data); err != nil {
			return Document{}, err
		}
	case FormatMarkdown, FormatText:
		if err := validateUTF8(data); err != nil {
			return Document{}, err
		}
	default:
		return Document{}, ErrInvalidContent{Detail: fmt.Sprintf("unsupported document format %q", format)}
	}
	return Document{Format: format, Raw: data, Metadata: metadata}, nil
}

func (d Document) CodecCode() uint64 {
	switch d.Format {
	case FormatPDF:
		return codecPDF
	case FormatMarkdown:
		return codecMarkdown
	default:
		return codecText
	}
}

func (d Document) Bytes() ([]byte, error) {
	return d.Raw, nil
}

// CanonicalBytes excludes Metadata from CID derivation: only the raw
// content bytes participate.
func (d Document) CanonicalBytes() ([]byte, error) {
	return d.Raw, nil
}

// DecodeDocument reconstructs a Document from raw bytes for a known
// format, re-running the same validation NewDocument applies.
func DecodeDocument(data []byte, format Format) (Document, error) {
	return NewDocument(data, DocumentMetadata{}, format)
}

// DocumentFormatForCodec maps a codec code minted by Document.CodecCode
// back to the Format that produced it, so a retrieval path that only has
// a CID's embedded codec can pick the right decoder.
func DocumentFormatForCodec(code uint64) (Format, bool) {
	switch code {
	case codecPDF:
		return FormatPDF, true
	case codecMarkdown:
		return FormatMarkdown, true
	case codecText:
		return FormatText, true
	}
	return "", false
}
