// Package imagefile loads workout log images and encodes them for inline transmission.
package imagefile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMediaType is used when the image type cannot be sniffed.
const DefaultMediaType = "image/jpeg"

// ErrEmptyImage is returned when the image file has no content.
var ErrEmptyImage = errors.New("image file is empty")

// Load reads all bytes of the image at path.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read image %s: %w", path, ErrEmptyImage)
	}
	return data, nil
}

// DetectMediaType sniffs the image media type from its content.
// Anything that is not recognised as an image falls back to DefaultMediaType.
func DetectMediaType(data []byte) string {
	mt := mimetype.Detect(data)
	name, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(name, "image/") {
		return DefaultMediaType
	}
	return name
}

// Encode returns the standard padded base64 encoding of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DataURI embeds data as a base64 data URI with the given media type.
func DataURI(data []byte, mediaType string) string {
	if mediaType == "" {
		mediaType = DefaultMediaType
	}
	return "data:" + mediaType + ";base64," + Encode(data)
}
