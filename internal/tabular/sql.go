package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLSource reads tables from a live database instead of flat files. The
// same table names and column requirements apply, so the rest of the
// pipeline cannot tell the sources apart.
type SQLSource struct {
	db *sql.DB
}

// OpenSQL opens a live-query source from a DSN. Postgres DSNs
// (postgres:// or postgresql://) go through the pgx stdlib driver, anything
// else is treated as a SQLite path.
func OpenSQL(dsn string) (*SQLSource, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", driver, err)
	}
	return &SQLSource{db: db}, nil
}

// NewSQLSource wraps an already open database handle.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Close releases the underlying connection pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// ReadTable implements Source. The whole table is fetched; filtering,
// coercion to text, and sorting follow the same path as the file source.
func (s *SQLSource) ReadTable(ctx context.Context, spec Spec) ([]Row, error) {
	// Table names come from the parser registry, not user input, so they are
	// safe to interpolate.
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+spec.Name)
	if err != nil {
		return nil, &MissingSourceError{Table: spec.Name, Err: err}
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table %s: columns: %w", spec.Name, err)
	}
	colIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		colIdx[c] = i
	}
	for _, col := range spec.schemaColumns() {
		if _, ok := colIdx[col]; !ok {
			return nil, &SchemaError{Table: spec.Name, Column: col}
		}
	}

	var out []Row
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("table %s: scan: %w", spec.Name, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = coerceText(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: iterate: %w", spec.Name, err)
	}

	return finish(spec, out), nil
}

// coerceText renders a scanned database value as its exact text form.
// Identifiers must never pass through a numeric round-trip.
func coerceText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", x)
	}
}
