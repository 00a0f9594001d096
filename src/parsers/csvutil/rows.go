// Package csvutil holds the CSV reading and field-normalization rules
// shared by every broker adapter.
package csvutil

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/security/validation"
)

const bom = "\ufeff"

// Row is one data record keyed by lower-cased header name.
type Row struct {
	Line   int
	fields map[string]string
	raw    []string
}

// Get returns the first non-empty value among keys (case-insensitive).
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := r.fields[strings.ToLower(k)]; v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether the header carried the column, empty or not.
func (r Row) Has(key string) bool {
	_, ok := r.fields[strings.ToLower(key)]
	return ok
}

// Raw returns the record as read, before header mapping.
func (r Row) Raw() []string { return r.raw }

// RawText rebuilds the original record for provenance and hashing.
func (r Row) RawText() string {
	return strings.Join(r.raw, ",")
}

// NewRow builds a row from parallel header and value slices. Extra values
// beyond the header are kept in RawText only.
func NewRow(line int, header, record []string) Row {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(record) {
			fields[h] = ""
			continue
		}
		fields[h] = strings.TrimSpace(validation.StripControl(record[i]))
	}
	return Row{Line: line, fields: fields, raw: record}
}

// FirstLine returns the first non-empty line of content with any byte
// order mark removed.
func FirstLine(content string) string {
	content = strings.TrimPrefix(content, bom)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, bom))
		if line != "" {
			return line
		}
	}
	return ""
}

// ReadRows parses content with a lenient CSV reader. The first record is
// the header; its names are lower-cased and trimmed. Records the reader
// cannot parse are logged and skipped.
func ReadRows(content string) ([]string, []Row, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, bom)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rawHeader, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyInput
		}
		return nil, nil, err
	}
	header := NormalizeHeader(rawHeader)

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				logger.L.Warn("Skipping unreadable CSV record", "line", pe.Line, "error", err)
				continue
			}
			return header, rows, err
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}
		rows = append(rows, NewRow(line, header, record))
	}
	return header, rows, nil
}

func NormalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	for i, h := range raw {
		header[i] = strings.ToLower(strings.TrimSpace(validation.StripControl(h)))
	}
	return header
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CountIndicators counts how many indicators occur as substrings of the
// lower-cased header.
func CountIndicators(header string, indicators []string) int {
	h := strings.ToLower(header)
	n := 0
	for _, ind := range indicators {
		if strings.Contains(h, ind) {
			n++
		}
	}
	return n
}
