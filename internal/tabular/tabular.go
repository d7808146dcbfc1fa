// Package tabular loads one named clinical table from a backing source into
// filtered, id-coerced, sorted rows. Identifier columns are always exact text
// (leading zeros and non-numeric ids survive), rows missing a required column
// are dropped, and rows come back sorted ascending by (person id, episode id,
// table timestamp) — every downstream stage relies on that ordering instead
// of re-sorting.
package tabular

import (
	"context"
	"fmt"
	"sort"
)

// Row is one table row keyed by column name. Absent columns read as "".
type Row map[string]string

// Spec describes how one table is read: which columns must be present in the
// source, which make a row usable, which drive the sort, and an optional row
// cap for dev mode.
type Spec struct {
	Name string

	// Required columns: a row with any of these empty is dropped. These are
	// the identifier and code columns a row is useless without.
	Required []string

	// Columns lists additional columns whose absence from the source is a
	// SchemaError, but whose per-row emptiness is tolerated (demographics,
	// value columns).
	Columns []string

	// IDs are the identifier columns, in sort priority order. They are part
	// of Required in practice but listed separately because they drive the
	// row ordering.
	IDs []string

	// TimeColumn is the table-specific timestamp used as the sort tiebreak
	// after the id columns. Empty for tables with no event time (person).
	TimeColumn string

	// Limit caps the number of surviving rows, 0 means no cap. Set by the
	// engine in dev mode.
	Limit int
}

// schemaColumns returns every column the source must expose for this table.
func (s Spec) schemaColumns() []string {
	cols := append(append([]string{}, s.Required...), s.Columns...)
	if s.TimeColumn != "" {
		cols = append(cols, s.TimeColumn)
	}
	return cols
}

// sortColumns returns the Spec's ordering key: id columns then timestamp.
func (s Spec) sortColumns() []string {
	if s.TimeColumn == "" {
		return s.IDs
	}
	return append(append([]string{}, s.IDs...), s.TimeColumn)
}

// Source reads whole tables. Implementations: FileSource (CSV or CSV.gz per
// table under a root directory) and SQLSource (live query against SQLite or
// Postgres, keyed by the same table names).
type Source interface {
	ReadTable(ctx context.Context, spec Spec) ([]Row, error)
}

// MissingSourceError reports a table that cannot be located in the source.
type MissingSourceError struct {
	Table string
	Path  string
	Err   error
}

func (e *MissingSourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("table %s: source %s not found", e.Table, e.Path)
	}
	return fmt.Sprintf("table %s: source not found", e.Table)
}

func (e *MissingSourceError) Unwrap() error { return e.Err }

// SchemaError reports a required column absent from a located table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: required column %s is missing", e.Table, e.Column)
}

// finish applies the shared post-read pipeline: drop rows with any empty
// required column, sort by the spec's key columns, then apply the row cap.
func finish(spec Spec, rows []Row) []Row {
	kept := rows[:0]
outer:
	for _, r := range rows {
		for _, col := range spec.Required {
			if r[col] == "" {
				continue outer
			}
		}
		kept = append(kept, r)
	}

	cols := spec.sortColumns()
	sort.SliceStable(kept, func(i, j int) bool {
		for _, c := range cols {
			if kept[i][c] != kept[j][c] {
				return kept[i][c] < kept[j][c]
			}
		}
		return false
	})

	if spec.Limit > 0 && len(kept) > spec.Limit {
		kept = kept[:spec.Limit]
	}
	return kept
}
