package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseError reports a value that could not be coerced to its expected type,
// naming the table and column so the offending source is actionable.
type ParseError struct {
	Table  string
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table %s: cannot parse %s value %q", e.Table, e.Column, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// timeLayouts are tried in order. Sources mix date-only and datetime columns
// freely, with or without the T separator and fractional seconds.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
	"2006-01-02 15:04",
}

// parseTime parses a source timestamp. The empty string is not an error: it
// maps to the zero time, mirroring rows whose optional timestamp column is
// blank but whose code survives filtering.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseIntLoose parses an integer that may carry a float suffix ("1980.0"),
// which numeric columns pick up on the way through spreadsheet tooling.
func parseIntLoose(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
