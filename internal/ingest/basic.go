package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/clinical-research/cohort/internal/tabular"
	"github.com/clinical-research/cohort/internal/timeline"
)

// Basic tables, always loaded. Clinical tables are requested on top of these.
const (
	TablePerson = "person"
	TableVisit  = "visit_occurrence"
	TableDeath  = "death"
)

var (
	personSpec = tabular.Spec{
		Name:     TablePerson,
		Required: []string{"person_id"},
		Columns: []string{
			"year_of_birth", "month_of_birth", "day_of_birth",
			"gender_concept_id", "race_concept_id",
		},
		IDs: []string{"person_id"},
	}
	visitSpec = tabular.Spec{
		Name:       TableVisit,
		Required:   []string{"person_id", "visit_occurrence_id"},
		Columns:    []string{"visit_start_date", "visit_end_date"},
		IDs:        []string{"person_id", "visit_occurrence_id"},
		TimeColumn: "visit_start_datetime",
	}
	deathSpec = tabular.Spec{
		Name:     TableDeath,
		Required: []string{"person_id"},
		Columns:  []string{"death_date"},
		IDs:      []string{"person_id"},
	}
)

// assembleBasicInfo joins the person, visit, and death tables on person id
// and builds the skeleton Person and Episode entities. Each person group is
// an independent unit; groups run on the worker pool and merge into the
// collection in a single pass afterwards.
func (e *Engine) assembleBasicInfo(ctx context.Context, src tabular.Source, dev bool) (*timeline.Collection, error) {
	pSpec := personSpec
	if dev {
		pSpec.Limit = DevPersonLimit
	}

	persons, err := src.ReadTable(ctx, pSpec)
	if err != nil {
		return nil, err
	}
	visits, err := src.ReadTable(ctx, visitSpec)
	if err != nil {
		return nil, err
	}
	deaths, err := src.ReadTable(ctx, deathSpec)
	if err != nil {
		return nil, err
	}

	// Left join person ⟕ visit ⟕ death: index the right sides by person id.
	// Visit rows keep their (visit id, start datetime) reader order.
	visitsByPerson := make(map[string][]tabular.Row)
	for _, v := range visits {
		id := v["person_id"]
		visitsByPerson[id] = append(visitsByPerson[id], v)
	}
	deathDates := make(map[string]string, len(deaths))
	for _, d := range deaths {
		if _, seen := deathDates[d["person_id"]]; !seen {
			deathDates[d["person_id"]] = d["death_date"]
		}
	}

	groups := groupByPerson(persons, func(r tabular.Row) string { return r["person_id"] })

	results, err := runUnits(ctx, e.Workers, groups,
		func(g unitGroup[tabular.Row]) (*timeline.Person, error) {
			return buildPersonUnit(g.personID, g.rows[0], visitsByPerson[g.personID], deathDates)
		})
	if err != nil {
		return nil, err
	}

	col := timeline.NewCollection()
	for _, r := range results {
		if err := col.Add(r.value); err != nil {
			return nil, err
		}
	}
	return col, nil
}

// buildPersonUnit builds one Person and their Episodes from the joined rows
// of a single person group. No shared state: safe on any worker.
func buildPersonUnit(personID string, demo tabular.Row, visitRows []tabular.Row, deathDates map[string]string) (*timeline.Person, error) {
	birth, err := parseBirthDate(demo)
	if err != nil {
		return nil, err
	}

	p := &timeline.Person{
		ID:        personID,
		BirthTime: birth,
		Gender:    demo["gender_concept_id"],
		Ethnicity: demo["race_concept_id"],
	}

	deathDate, hasDeath := deathDates[personID]
	if hasDeath && deathDate == "" {
		hasDeath = false
	}
	var deathTime time.Time
	if hasDeath {
		deathTime, err = parseTime(deathDate)
		if err != nil {
			return nil, &ParseError{Table: TableDeath, Column: "death_date", Value: deathDate, Err: err}
		}
		p.DeathTime = &deathTime
	}

	// Rows are sorted by (visit id, start datetime); consecutive rows with
	// the same visit id are one episode.
	for i := 0; i < len(visitRows); {
		row := visitRows[i]
		visitID := row["visit_occurrence_id"]
		for i < len(visitRows) && visitRows[i]["visit_occurrence_id"] == visitID {
			i++
		}

		start, err := parseTime(row["visit_start_date"])
		if err != nil {
			return nil, &ParseError{Table: TableVisit, Column: "visit_start_date", Value: row["visit_start_date"], Err: err}
		}
		end, err := parseTime(row["visit_end_date"])
		if err != nil {
			return nil, &ParseError{Table: TableVisit, Column: "visit_end_date", Value: row["visit_end_date"], Err: err}
		}

		// Alive unless a death date exists at or before the episode end.
		status := timeline.StatusAlive
		if hasDeath && !deathTime.After(end) {
			status = timeline.StatusDeceased
		}

		p.AddEpisode(&timeline.Episode{
			ID:              visitID,
			PersonID:        personID,
			EncounterTime:   start,
			DischargeTime:   end,
			DischargeStatus: status,
		})
	}

	return p, nil
}

// parseBirthDate assembles the birth timestamp from the separate year, month,
// and day columns, defaulting the time of day to midnight.
func parseBirthDate(demo tabular.Row) (time.Time, error) {
	year, err := parseIntLoose(demo["year_of_birth"])
	if err != nil {
		return time.Time{}, &ParseError{Table: TablePerson, Column: "year_of_birth", Value: demo["year_of_birth"], Err: err}
	}
	month := 1
	if v := demo["month_of_birth"]; v != "" {
		if month, err = parseIntLoose(v); err != nil {
			return time.Time{}, &ParseError{Table: TablePerson, Column: "month_of_birth", Value: v, Err: err}
		}
	}
	day := 1
	if v := demo["day_of_birth"]; v != "" {
		if day, err = parseIntLoose(v); err != nil {
			return time.Time{}, &ParseError{Table: TablePerson, Column: "day_of_birth", Value: v, Err: err}
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, &ParseError{
			Table:  TablePerson,
			Column: "month_of_birth",
			Value:  fmt.Sprintf("%d-%d-%d", year, month, day),
		}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
