// Package table provides the in-memory data model for delimited text and
// the tokenizer that builds it from raw input.
//
// The tokenizer is deliberately naive: it splits on a single detected
// delimiter with no quote or escape awareness. A comma inside a quoted
// value will mis-split. Callers that need RFC 4180 compliance should swap
// in a state-machine parser behind the same Parse contract.
package table

import "strings"

// Delimiter is the field separator detected at parse time. It travels with
// the parsed table so that export uses the same separator instead of
// guessing again from the file name.
type Delimiter rune

const (
	Comma     Delimiter = ','
	Semicolon Delimiter = ';'
)

func (d Delimiter) String() string { return string(rune(d)) }

// Header is the ordered list of column names from the first non-blank line.
// It defines the column count for display only; rows are not reconciled
// against it.
type Header []string

// Table is an ordered collection of rows, each an ordered slice of cell
// strings. Rows may be shorter or longer than the header; consumers must
// handle both.
type Table [][]string

// Parsed is the result of tokenizing one uploaded file.
type Parsed struct {
	Headers   Header
	Rows      Table
	Delimiter Delimiter
}

// DetectDelimiter inspects a single line, by convention the first non-blank
// line of the file. A semicolon anywhere on it selects semicolon for the
// whole file, otherwise comma. Heuristic only.
func DetectDelimiter(line string) Delimiter {
	if strings.ContainsRune(line, rune(Semicolon)) {
		return Semicolon
	}
	return Comma
}

// Parse tokenizes raw delimited text into a trimmed header row and data
// rows. It never fails: input with no usable lines yields an empty Parsed
// with the comma delimiter.
func Parse(text string) Parsed {
	lines := splitLines(text)
	if len(lines) == 0 {
		return Parsed{Delimiter: Comma}
	}

	delim := DetectDelimiter(lines[0])

	headers := Header(splitCells(lines[0], delim))
	rows := make(Table, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, splitCells(line, delim))
	}

	return Parsed{Headers: headers, Rows: rows, Delimiter: delim}
}

// splitLines breaks text on \r\n or \n boundaries and discards lines that
// are empty or whitespace-only.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// splitCells splits one line on the delimiter and trims each cell.
func splitCells(line string, d Delimiter) []string {
	parts := strings.Split(line, d.String())
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Clone returns a deep copy of t. The session layer keeps the uploaded
// table immutable and hands copies to the cleaning pipeline.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for i, row := range t {
		out[i] = append([]string(nil), row...)
	}
	return out
}
