package timeline

import "time"

// Event is a single coded clinical fact: one row of a clinical table after
// parsing. An event belongs to exactly one episode's per-table list and
// carries exactly one vocabulary at any instant; the vocabulary mapper may
// replace it with zero or more rewritten copies.
type Event struct {
	Code       string
	Vocabulary string
	Table      string
	EpisodeID  string
	PersonID   string
	Timestamp  time.Time

	// Attrs holds optional extra attributes (value columns, units, ...).
	// Nil for the common case.
	Attrs map[string]string
}

// Clone returns a copy of the event. Attrs are shallow-copied into a fresh
// map so a fan-out group never aliases the source event's attributes.
func (ev *Event) Clone() *Event {
	out := *ev
	if ev.Attrs != nil {
		out.Attrs = make(map[string]string, len(ev.Attrs))
		for k, v := range ev.Attrs {
			out.Attrs[k] = v
		}
	}
	return &out
}
