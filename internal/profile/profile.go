// Package profile derives per-column summaries from a parsed table. The
// preview layer uses them to hint at column types and spot sparse or
// low-cardinality columns before cleaning.
package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"tablescrub/internal/clean"
	"tablescrub/internal/table"
)

// Kind classifies the dominant content of a column.
type Kind string

const (
	// KindNumeric means every non-empty cell in the column parses as a
	// number.
	KindNumeric Kind = "numeric"
	// KindText covers everything else with at least one non-empty cell.
	KindText Kind = "text"
	// KindEmpty means the column has no non-empty cells.
	KindEmpty Kind = "empty"
)

// Column summarizes a single header column. The numeric aggregates are nil
// for non-numeric columns.
type Column struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	NonEmpty int      `json:"nonEmpty"`
	Distinct int      `json:"distinct"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	StdDev   *float64 `json:"stdDev,omitempty"`
}

// Profile summarizes every header column. Rows shorter than the header
// contribute empty cells for the missing positions; cells beyond the
// header are ignored.
func Profile(headers table.Header, rows table.Table) []Column {
	cols := make([]Column, len(headers))
	for i, name := range headers {
		cols[i] = profileColumn(name, i, rows)
	}
	return cols
}

func profileColumn(name string, idx int, rows table.Table) Column {
	col := Column{Name: name, Kind: KindEmpty}
	if col.Name == "" {
		col.Name = fmt.Sprintf("column_%d", idx+1)
	}

	distinct := make(map[string]struct{})
	var numeric stats.Float64Data
	numericCells := 0

	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		col.NonEmpty++
		distinct[strings.ToLower(cell)] = struct{}{}

		if clean.IsNumericLike(cell) {
			numericCells++
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				numeric = append(numeric, v)
			}
		}
	}
	col.Distinct = len(distinct)

	if col.NonEmpty == 0 {
		return col
	}

	if numericCells == col.NonEmpty {
		col.Kind = KindNumeric
		col.Min = statValue(stats.Min(numeric))
		col.Max = statValue(stats.Max(numeric))
		col.Mean = statValue(stats.Mean(numeric))
		col.StdDev = statValue(stats.StandardDeviation(numeric))
	} else {
		col.Kind = KindText
	}

	return col
}

// statValue adapts a stats result to an optional field. The library
// returns an error only for empty input, which cannot happen once the
// column is known to be numeric, but the nil keeps the JSON honest if it
// ever does.
func statValue(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &v
}
