// Package export serializes cleaned tables into downloadable formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"tablescrub/internal/table"
)

// Serialize renders headers and rows as delimited text using the delimiter
// detected at parse time. Cells are written verbatim: a cell containing
// the delimiter or a newline will not round-trip. This matches the
// tokenizer's naive splitting and is a documented fidelity gap versus full
// CSV compliance.
func Serialize(headers table.Header, rows table.Table, d table.Delimiter) string {
	sep := d.String()
	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, strings.Join(headers, sep))
	}
	for _, row := range rows {
		lines = append(lines, strings.Join(row, sep))
	}
	return strings.Join(lines, "\n")
}

// knownExtensions are the upload extensions stripped before the cleaned
// suffix is appended.
var knownExtensions = []string{".csv", ".tsv", ".txt"}

// CleanedFileName derives the suggested download name for a cleaned file:
// "contacts.csv" becomes "contacts-cleaned.csv". The extension match is
// case-insensitive; a name without a recognized extension just gains the
// suffix.
func CleanedFileName(name string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		return "table-cleaned.csv"
	}
	lower := strings.ToLower(base)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	return base + "-cleaned.csv"
}

// WriteWorkbook writes headers and rows to w as a single-sheet xlsx
// workbook. Cell values stay strings; no type coercion is attempted.
func WriteWorkbook(w io.Writer, headers table.Header, rows table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	writeRow := func(rowNum int, cells []string) error {
		if len(cells) == 0 {
			return nil
		}
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		start, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, start, &values)
	}

	if err := writeRow(1, headers); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
