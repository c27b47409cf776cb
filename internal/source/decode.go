package source

// decode.go prepares raw upload bytes for the CSV parser.
//
// Exports from spreadsheet tools often start with a byte order mark and may
// carry stray bytes from legacy encodings. The decoding chain strips a UTF-8
// BOM (or switches to UTF-16 when a UTF-16 BOM is present) and replaces
// invalid UTF-8 sequences with U+FFFD without buffering the whole file.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewDecodingReader wraps r with BOM handling and UTF-8 sanitizing.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader tracks how many bytes were read from the underlying reader.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
