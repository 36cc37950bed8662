package table

// decode.go handles the byte-level hygiene applied to uploads before
// tokenization: stripping the UTF-8 BOM that Windows tools prepend and
// replacing invalid UTF-8 sequences with U+FFFD.

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode reads an uploaded file into a string suitable for Parse. The
// caller is expected to bound r (http.MaxBytesReader or similar).
func Decode(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return string(sanitizeUTF8(data)), nil
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode
// replacement character. Valid input is returned unchanged without
// copying.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}

	return buf.Bytes()
}
