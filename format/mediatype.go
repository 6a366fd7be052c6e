package format

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Media types used by the generated package.
const (
	XHTML       = "application/xhtml+xml"
	NCX         = "application/x-dtbncx+xml"
	OPF         = "application/oebps-package+xml"
	EPUB        = "application/epub+zip"
	OctetStream = "application/octet-stream"
)

// ErrMediaTypeUnknown is returned when a file's media type cannot be
// determined or is not acceptable for its use.
var ErrMediaTypeUnknown = errors.New("epub: unknown media type")

var byExtension = map[string]string{
	".xhtml": XHTML,
	".html":  XHTML,
	".htm":   XHTML,
	".ncx":   NCX,
	".opf":   OPF,
	".css":   "text/css",
	".js":    "application/javascript",
	".smil":  "application/smil+xml",
	".pls":   "application/pls+xml",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpe":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",

	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",

	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// MediaTypeByExtension determines the media type from the filename extension.
func MediaTypeByExtension(filename string) (string, bool) {
	mt, ok := byExtension[strings.ToLower(filepath.Ext(filename))]
	return mt, ok
}

// MediaTypeOrDefault returns the extension media type, or
// application/octet-stream when the extension is not known.
func MediaTypeOrDefault(filename string) string {
	if mt, ok := MediaTypeByExtension(filename); ok {
		return mt
	}
	return OctetStream
}

// IsImage reports whether the media type is an image type.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

// DetectFromMagic checks the leading bytes of data to determine the media
// type. This provides more reliable detection than extension-based detection.
func DetectFromMagic(data []byte) string {
	return essence(mimetype.Detect(data).String())
}

// Sniff reads the beginning of the named file and returns its media type.
func Sniff(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return essence(m.String()), nil
}

// essence strips parameters such as "; charset=utf-8".
func essence(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}
