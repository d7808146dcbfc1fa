package vocab

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TableCrossMapper is a file-backed CrossMapper: a two-column delimited file
// of (source code, target code) pairs. A source code appearing on several
// lines fans out to several targets, in file order.
type TableCrossMapper struct {
	source  string
	target  string
	targets map[string][]string
}

// LoadCrossMapFile reads a tab-delimited code-pair file.
func LoadCrossMapFile(path, source, target string) (*TableCrossMapper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cross map %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() // read-only handle

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	targets := make(map[string][]string)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read cross map %s: %w", path, err)
		}
		if len(rec) < 2 || rec[0] == "" || rec[1] == "" {
			continue
		}
		targets[rec[0]] = append(targets[rec[0]], rec[1])
	}

	return &TableCrossMapper{source: source, target: target, targets: targets}, nil
}

// Map implements CrossMapper. The option bags are accepted for interface
// compatibility; a flat code-pair table has no levels to select.
func (t *TableCrossMapper) Map(ctx context.Context, code string, sourceKwargs, targetKwargs map[string]any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.targets[code], nil
}

// DirService resolves cross maps from a directory of code-pair files named
// {SOURCE}_to_{TARGET}.tsv.
type DirService struct {
	Dir string
}

// CrossMap implements Service.
func (d *DirService) CrossMap(source, target string) (CrossMapper, error) {
	path := filepath.Join(d.Dir, fmt.Sprintf("%s_to_%s.tsv", source, target))
	return LoadCrossMapFile(path, source, target)
}
