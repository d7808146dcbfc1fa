package tabular

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSource reads one delimited file per table from a root directory, named
// {table}.csv or {table}.csv.gz.
type FileSource struct {
	Root       string
	Delimiter  rune // default tab
	Compressed bool
}

// NewFileSource returns a FileSource with the default tab delimiter.
func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root, Delimiter: '\t'}
}

func (fs *FileSource) path(table string) string {
	name := table + ".csv"
	if fs.Compressed {
		name += ".gz"
	}
	return filepath.Join(fs.Root, name)
}

// ReadTable implements Source.
func (fs *FileSource) ReadTable(ctx context.Context, spec Spec) ([]Row, error) {
	path := fs.path(spec.Name)

	f, err := os.Open(path)
	if err != nil {
		return nil, &MissingSourceError{Table: spec.Name, Path: path, Err: err}
	}
	defer func() { _ = f.Close() }() // read-only handle

	var rd io.Reader = f
	if fs.Compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("table %s: open gzip %s: %w", spec.Name, path, err)
		}
		defer func() { _ = gz.Close() }() // safe to ignore
		rd = gz
	}

	cr := csv.NewReader(rd)
	cr.Comma = fs.Delimiter
	if cr.Comma == 0 {
		cr.Comma = '\t'
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			cols := spec.schemaColumns()
			col := ""
			if len(cols) > 0 {
				col = cols[0]
			}
			return nil, &SchemaError{Table: spec.Name, Column: col}
		}
		return nil, fmt.Errorf("table %s: read header: %w", spec.Name, err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}
	for _, col := range spec.schemaColumns() {
		if _, ok := colIdx[col]; !ok {
			return nil, &SchemaError{Table: spec.Name, Column: col}
		}
	}

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: read row: %w", spec.Name, err)
		}
		row := make(Row, len(header))
		for name, i := range colIdx {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	return finish(spec, rows), nil
}
