// Package ocr reads the text printed on a cover image so it can serve as
// the image's alternative text.
//
// Recognition wraps the Tesseract engine via gosseract and is only compiled
// with the "ocr" build tag:
//
//	go build -tags ocr
//
// Tesseract must be installed. On macOS:
//
//	brew install tesseract
//
// On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
//
// Without the tag, New returns ErrOCRNotEnabled and callers fall back to
// another alt text.
package ocr

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// MaxAltText bounds the length, in runes, of text returned by AltText.
const MaxAltText = 200

// AltText collapses recognized text into a single line suitable for an alt
// attribute. Runs of whitespace become one space and overly long text is cut
// at a word boundary.
func AltText(recognized string) string {
	text := strings.Join(strings.Fields(recognized), " ")
	if utf8.RuneCountInString(text) <= MaxAltText {
		return text
	}

	runes := []rune(text)[:MaxAltText]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}
