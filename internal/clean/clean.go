// Package clean implements the row-set transforms and the pipeline that
// composes them.
//
// Each transform is a pure function from a Table to a new Table plus an
// effect count. Transforms never mutate their input, which is what makes
// re-running the pipeline from the original upload atomic and idempotent.
package clean

import (
	"strconv"
	"strings"

	"tablescrub/internal/table"
)

// Options selects which transforms a pipeline run applies. The flags are
// independent; application order is fixed by Apply regardless of how they
// were toggled.
type Options struct {
	RemoveDuplicates bool `json:"removeDuplicates"`
	TrimWhitespace   bool `json:"trimWhitespace"`
	StandardizeCase  bool `json:"standardizeCase"`
	RemoveEmptyRows  bool `json:"removeEmptyRows"`
}

// DefaultOptions returns the options preselected for a fresh session.
func DefaultOptions() Options {
	return Options{
		RemoveDuplicates: true,
		TrimWhitespace:   true,
		StandardizeCase:  false,
		RemoveEmptyRows:  true,
	}
}

// Stats aggregates the effect counts of one pipeline run. WhitespaceFixed
// counts individual cells, not rows. StandardizeCase is stats-free.
type Stats struct {
	DuplicatesRemoved int `json:"duplicatesRemoved"`
	WhitespaceFixed   int `json:"whitespaceFixed"`
	EmptyRowsRemoved  int `json:"emptyRowsRemoved"`
}

// signatureSep joins normalized cells into a row signature. A separator is
// required so that ["ab","c"] and ["a","bc"] produce distinct signatures.
const signatureSep = "|"

// RemoveEmptyRows drops rows whose cells all trim to the empty string.
// A row with any non-blank cell survives, even when its first column is
// blank.
func RemoveEmptyRows(rows table.Table) (table.Table, int) {
	out := make(table.Table, 0, len(rows))
	removed := 0
	for _, row := range rows {
		if isEmptyRow(row) {
			removed++
			continue
		}
		out = append(out, row)
	}
	return out, removed
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// RemoveDuplicates keeps the first row for each normalized signature and
// drops the rest. The kept row is retained in its original, unnormalized
// form; the count is the number of rows dropped.
func RemoveDuplicates(rows table.Table) (table.Table, int) {
	seen := make(map[string]struct{}, len(rows))
	out := make(table.Table, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		sig := Signature(row)
		if _, ok := seen[sig]; ok {
			dropped++
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, row)
	}
	return out, dropped
}

// Signature returns the normalized identity of a row used for duplicate
// detection: every cell trimmed and lowercased, joined with a pipe. Two
// rows that differ only by case or surrounding whitespace collide.
func Signature(row []string) string {
	parts := make([]string, len(row))
	for i, cell := range row {
		parts[i] = strings.ToLower(strings.TrimSpace(cell))
	}
	return strings.Join(parts, signatureSep)
}

// TrimWhitespace trims surrounding whitespace from every cell. The count
// is the number of cells whose trimmed form differs from the original.
func TrimWhitespace(rows table.Table) (table.Table, int) {
	out := make(table.Table, len(rows))
	fixed := 0
	for i, row := range rows {
		newRow := make([]string, len(row))
		for j, cell := range row {
			trimmed := strings.TrimSpace(cell)
			if trimmed != cell {
				fixed++
			}
			newRow[j] = trimmed
		}
		out[i] = newRow
	}
	return out, fixed
}

// StandardizeCase lowercases every non-empty cell that does not look like
// a number. Numeric-looking cells keep their original form so values such
// as "1E5" survive untouched.
func StandardizeCase(rows table.Table) table.Table {
	out := make(table.Table, len(rows))
	for i, row := range rows {
		newRow := make([]string, len(row))
		for j, cell := range row {
			if cell != "" && !IsNumericLike(cell) {
				newRow[j] = strings.ToLower(cell)
			} else {
				newRow[j] = cell
			}
		}
		out[i] = newRow
	}
	return out
}

// IsNumericLike reports whether a cell parses as a number. The empty
// string is not numeric; surrounding whitespace is tolerated.
func IsNumericLike(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Apply runs the selected transforms in a fixed order: empty-row removal,
// then dedup, then trim, then case standardization. Skipped transforms
// contribute zero to their stat. Dedup runs before trim but matches on its
// own normalized signatures, so duplicate counts do not depend on whether
// trimming is enabled.
//
// The input table is cloned up front and never mutated, so the caller's
// copy is intact on every path.
func Apply(rows table.Table, opts Options) (table.Table, Stats) {
	out := rows.Clone()
	var stats Stats

	if opts.RemoveEmptyRows {
		out, stats.EmptyRowsRemoved = RemoveEmptyRows(out)
	}
	if opts.RemoveDuplicates {
		out, stats.DuplicatesRemoved = RemoveDuplicates(out)
	}
	if opts.TrimWhitespace {
		out, stats.WhitespaceFixed = TrimWhitespace(out)
	}
	if opts.StandardizeCase {
		out = StandardizeCase(out)
	}

	return out, stats
}
