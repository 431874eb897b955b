package content

import "fmt"

const (
	codecJPEG uint64 = 0x610001
	codecPNG  uint64 = 0x610002
)

// ImageMetadata is caller-supplied descriptive metadata attached to a
// stored image.
type ImageMetadata struct {
	Tags []string
}

// Image is a TypedPayload wrapping validated image bytes.
type Image struct {
	Format   Format
	Raw      []byte
	Metadata ImageMetadata
}

// NewImage validates data's magic bytes against format and returns an
// Image.
func NewImage(data []byte, metadata ImageMetadata, format Format) (Image, error) {
	switch format {
	case FormatJPEG:
		if err := validateJPEG(data); err != nil {
			return Image{}, err
		}
	case FormatPNG:
		if err := validatePNG(data); err != nil {
			return Image{}, err
		}
	default:
		return Image{}, ErrInvalidContent{Detail: fmt.Sprintf("unsupported image format %q", format)}
	}
	return Image{Format: format, Raw: data, Metadata: metadata}, nil
}

func (i Image) CodecCode() uint64 {
	if i.Format == FormatPNG {
		return codecPNG
	}
	return codecJPEG
}

func (i Image) Bytes() ([]byte, error) {
	return i.Raw, nil
}

func (i Image) CanonicalBytes() ([]byte, error) {
	return i.Raw, nil
}

// DecodeImage reconstructs an Image from raw bytes for a known format,
// re-running the same validation NewImage applies.
func DecodeImage(data []byte, format Format) (Image, error) {
	return NewImage(data, ImageMetadata{}, format)
}

// ImageFormatForCodec maps a codec code minted by Image.CodecCode back to
// the Format that produced it, so a retrieval path that only has a CID's
// embedded codec can pick the right decoder.
func ImageFormatForCodec(code uint64) (Format, bool) {
	switch code {
	case codecJPEG:
		return FormatJPEG, true
	case codecPNG:
		return FormatPNG, true
	}
	return "", false
}
