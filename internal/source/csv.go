// Package source reads order exports into raw rows for the core pipeline.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/orderingest/internal/core"
)

var (
	// ErrEmptyFile is returned when the input has no header line.
	ErrEmptyFile = errors.New("empty file")

	// ErrNoHeader is returned when the header line has no column names.
	ErrNoHeader = errors.New("invalid csv: header has no column names")

	// ErrInvalidCSV wraps parse failures from the CSV decoder.
	ErrInvalidCSV = errors.New("invalid csv")
)

// absentValues are cell values read as missing after normalization.
var absentValues = map[string]bool{
	"N/A":  true,
	"n/a":  true,
	"None": true,
}

// Batch is the decoded content of one CSV file.
type Batch struct {
	// Header holds the normalized column names in file order.
	Header []string
	Rows   []core.RawRow
	// Bytes is the size of the input as read, before decoding.
	Bytes int64
}

// ReadCSV decodes a whole CSV document into raw rows.
//
// Header names are trimmed, lower-cased and have spaces replaced by
// underscores. Cells are text-normalized; empty cells and the sentinels
// N/A, n/a and None become absent. Short rows get absent trailing cells and
// cells beyond the header are ignored. A header without data rows yields an
// empty batch.
func ReadCSV(r io.Reader) (*Batch, error) {
	counter := NewCountingReader(r)

	cr := csv.NewReader(NewDecodingReader(counter))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, wrapParseError(err)
	}

	header, err := normalizeHeader(record)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapParseError(err)
		}
		batch.Rows = append(batch.Rows, core.NewRawRow(header, normalizeCells(record)))
	}

	batch.Bytes = counter.BytesRead
	return batch, nil
}

// ReadFile opens path and decodes it with ReadCSV.
func ReadFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// NormalizeColumnName maps a header cell to its column name.
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func normalizeHeader(record []string) ([]string, error) {
	header := make([]string, len(record))
	named := false
	for i, cell := range record {
		name := NormalizeColumnName(cell)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		} else {
			named = true
		}
		header[i] = name
	}
	if !named {
		return nil, ErrNoHeader
	}
	return header, nil
}

func normalizeCells(record []string) []string {
	cells := make([]string, len(record))
	for i, cell := range record {
		v := core.NormalizeText(cell)
		if absentValues[v] {
			v = ""
		}
		cells[i] = v
	}
	return cells
}

func wrapParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, pe.Line, pe.Err)
	}
	return fmt.Errorf("read csv: %w", err)
}
