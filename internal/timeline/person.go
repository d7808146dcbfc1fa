package timeline

import (
	"sort"
	"time"
)

// DischargeStatus records whether the person was alive at episode discharge.
type DischargeStatus int

const (
	StatusAlive DischargeStatus = iota
	StatusDeceased
)

func (s DischargeStatus) String() string {
	if s == StatusDeceased {
		return "deceased"
	}
	return "alive"
}

// Episode is one care encounter. It owns its events, grouped per source
// table; events within one table list are kept in ascending timestamp order
// by the pipeline before mapping.
type Episode struct {
	ID              string
	PersonID        string
	EncounterTime   time.Time
	DischargeTime   time.Time
	DischargeStatus DischargeStatus

	// Events maps source table name to the ordered event list for that table.
	Events map[string][]*Event
}

// AddEvent appends an event to the episode's list for the event's table.
func (e *Episode) AddEvent(ev *Event) {
	if e.Events == nil {
		e.Events = make(map[string][]*Event)
	}
	e.Events[ev.Table] = append(e.Events[ev.Table], ev)
}

// EventList returns the episode's events for one table, nil if the table
// contributed nothing to this episode.
func (e *Episode) EventList(table string) []*Event {
	return e.Events[table]
}

// SetEventList replaces the episode's events for one table. An empty list
// removes the table entry entirely, so fan-out to zero leaves no residue.
func (e *Episode) SetEventList(table string, evs []*Event) {
	if len(evs) == 0 {
		delete(e.Events, table)
		return
	}
	if e.Events == nil {
		e.Events = make(map[string][]*Event)
	}
	e.Events[table] = evs
}

// AvailableTables returns the sorted table names with events on this episode.
func (e *Episode) AvailableTables() []string {
	tables := make([]string, 0, len(e.Events))
	for t := range e.Events {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// Person is one individual's full record: demographics plus owned episodes
// in chronological encounter order.
type Person struct {
	ID        string
	BirthTime time.Time
	DeathTime *time.Time // nil when no death record exists
	Gender    string
	Ethnicity string

	// Episodes in insertion order, which the assembler guarantees is
	// ascending encounter start time.
	Episodes []*Episode
}

// AddEpisode appends an episode to the person.
func (p *Person) AddEpisode(e *Episode) {
	p.Episodes = append(p.Episodes, e)
}

// Episode returns the episode with the given id, or ok=false. Persons hold
// few episodes, so a linear scan keeps the struct gob-friendly with no
// side index to maintain.
func (p *Person) Episode(id string) (*Episode, bool) {
	for _, e := range p.Episodes {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// AddEvent attaches an event to the episode it names. Returns false when the
// person has no such episode; the caller decides whether that is a drop or
// an error.
func (p *Person) AddEvent(ev *Event) bool {
	e, ok := p.Episode(ev.EpisodeID)
	if !ok {
		return false
	}
	e.AddEvent(ev)
	return true
}
