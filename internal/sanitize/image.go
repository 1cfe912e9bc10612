package sanitize

import (
	"bytes"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// allowedImageTypes are the only declared MIME types accepted for uploads.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// IsAllowedImageType reports whether a client-declared Content-Type is one of
// JPEG, PNG or WEBP. Parameters such as charset are ignored.
func IsAllowedImageType(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return allowedImageTypes[strings.ToLower(mediaType)]
}

// IsLikelyImage sniffs the first 12 bytes for a JPEG, PNG or WEBP signature.
// It ignores any client-supplied type or extension.
func IsLikelyImage(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return true
	}
	if bytes.Equal(data[:8], pngSignature) {
		return true
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// ImageExtension returns the file extension matching the sniffed content,
// e.g. ".jpg". Callers should check IsLikelyImage first.
func ImageExtension(data []byte) string {
	mt := mimetype.Detect(data)
	for _, allowed := range []string{"image/jpeg", "image/png", "image/webp"} {
		if mt.Is(allowed) {
			return mt.Extension()
		}
	}
	return ".img"
}
