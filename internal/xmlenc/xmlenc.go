// Package xmlenc holds the XML serialization helpers shared by the
// package, navigation and content document encoders.
package xmlenc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrEncodingFailed is matched by every error produced while serializing a
// document.
var ErrEncodingFailed = errors.New("epub: encoding failed")

// EncodeError reports a serialization failure for one document.
type EncodeError struct {
	Doc string // document being encoded, e.g. "toc.ncx"
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("epub: encoding %s: %v", e.Doc, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EncodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrEncodingFailed.
func (e *EncodeError) Is(target error) bool { return target == ErrEncodingFailed }

// Marshal encodes v as an indented XML document, prefixed with the XML
// declaration and, when non-empty, a doctype line. The result is decoded once
// more to make sure raw inner XML did not break well-formedness.
func Marshal(doc string, v any, doctype string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if doctype != "" {
		buf.WriteString(doctype)
		buf.WriteByte('\n')
	}

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", &EncodeError{Doc: doc, Err: err}
	}
	if err := enc.Flush(); err != nil {
		return "", &EncodeError{Doc: doc, Err: err}
	}
	buf.WriteByte('\n')

	if err := WellFormed(buf.Bytes()); err != nil {
		return "", &EncodeError{Doc: doc, Err: err}
	}
	return buf.String(), nil
}

// WellFormed decodes data token by token and returns the first syntax error.
func WellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// CheckText returns an EncodeError when any value contains invalid UTF-8 or
// a character outside the XML 1.0 Char production. encoding/xml would
// silently replace such characters.
func CheckText(doc string, values ...string) error {
	for _, s := range values {
		if !utf8.ValidString(s) {
			return &EncodeError{Doc: doc, Err: fmt.Errorf("invalid UTF-8 in %q", s)}
		}
		for _, r := range s {
			if !isXMLChar(r) {
				return &EncodeError{Doc: doc, Err: fmt.Errorf("illegal character %U in %q", r, s)}
			}
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	return r == 0x09 ||
		r == 0x0A ||
		r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
