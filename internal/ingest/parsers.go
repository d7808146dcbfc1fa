package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/clinical-research/cohort/internal/tabular"
	"github.com/clinical-research/cohort/internal/timeline"
)

// ErrNoParser is returned when a requested table has no registered parser.
// The engine validates the full requested table list up front, so this
// surfaces before any source is touched.
var ErrNoParser = errors.New("no parser registered for table")

// Parser turns one clinical table into typed events, grouped by person id.
// Implementations must not touch shared state: person groups run concurrently.
type Parser interface {
	Table() string
	Vocabulary() string
	Parse(ctx context.Context, src tabular.Source, workers int) (map[string][]*timeline.Event, error)
}

// Registry maps table name to its parser.
type Registry map[string]Parser

// DefaultRegistry covers the four supported clinical tables. Each parser
// binds a fixed vocabulary to its table's concept-id column.
func DefaultRegistry() Registry {
	parsers := []*eventParser{
		{table: "condition_occurrence", vocab: "CONDITION_CONCEPT_ID",
			codeCol: "condition_concept_id", timeCol: "condition_start_datetime"},
		{table: "procedure_occurrence", vocab: "PROCEDURE_CONCEPT_ID",
			codeCol: "procedure_concept_id", timeCol: "procedure_datetime"},
		{table: "drug_exposure", vocab: "DRUG_CONCEPT_ID",
			codeCol: "drug_concept_id", timeCol: "drug_exposure_start_datetime"},
		{table: "measurement", vocab: "MEASUREMENT_CONCEPT_ID",
			codeCol: "measurement_concept_id", timeCol: "measurement_datetime"},
	}
	r := make(Registry, len(parsers))
	for _, p := range parsers {
		r[p.table] = p
	}
	return r
}

// Validate checks every requested table against the registry before any work
// starts, reporting all unknown tables at once.
func (r Registry) Validate(tables []string) error {
	var missing []string
	for _, t := range tables {
		if _, ok := r[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	var errs []error
	for _, t := range missing {
		errs = append(errs, fmt.Errorf("%w: %s", ErrNoParser, t))
	}
	return errors.Join(errs...)
}

// eventParser is the shared implementation behind every clinical table: the
// tables are structurally identical and differ only in column names and the
// vocabulary label bound to them.
type eventParser struct {
	table   string
	vocab   string
	codeCol string
	timeCol string
}

func (p *eventParser) Table() string      { return p.table }
func (p *eventParser) Vocabulary() string { return p.vocab }

func (p *eventParser) spec() tabular.Spec {
	return tabular.Spec{
		Name:       p.table,
		Required:   []string{"person_id", "visit_occurrence_id", p.codeCol},
		IDs:        []string{"person_id", "visit_occurrence_id"},
		TimeColumn: p.timeCol,
	}
}

// Parse reads the table and emits one flat ordered event list per person.
// Whether the referenced episode actually exists is deferred to attachment.
func (p *eventParser) Parse(ctx context.Context, src tabular.Source, workers int) (map[string][]*timeline.Event, error) {
	rows, err := src.ReadTable(ctx, p.spec())
	if err != nil {
		return nil, err
	}

	groups := groupByPerson(rows, func(r tabular.Row) string { return r["person_id"] })

	results, err := runUnits(ctx, workers, groups,
		func(g unitGroup[tabular.Row]) ([]*timeline.Event, error) {
			return p.parseUnit(g.personID, g.rows)
		})
	if err != nil {
		return nil, err
	}

	byPerson := make(map[string][]*timeline.Event, len(results))
	for _, r := range results {
		byPerson[r.personID] = r.value
	}
	return byPerson, nil
}

// parseUnit converts one person group's rows to events. Rows arrive sorted by
// (episode id, timestamp), which is exactly the order the events keep.
func (p *eventParser) parseUnit(personID string, rows []tabular.Row) ([]*timeline.Event, error) {
	events := make([]*timeline.Event, 0, len(rows))
	for _, row := range rows {
		ts, err := parseTime(row[p.timeCol])
		if err != nil {
			return nil, &ParseError{Table: p.table, Column: p.timeCol, Value: row[p.timeCol], Err: err}
		}
		events = append(events, &timeline.Event{
			Code:       row[p.codeCol],
			Vocabulary: p.vocab,
			Table:      p.table,
			EpisodeID:  row["visit_occurrence_id"],
			PersonID:   personID,
			Timestamp:  ts,
		})
	}
	return events, nil
}
