package ingest

import (
	"github.com/clinical-research/cohort/internal/timeline"
)

// AttachStats counts the outcome of one attachment pass. Dropped events are
// a non-fatal data-quality signal, not an error: clinical tables routinely
// reference individuals outside the loaded cohort, especially under dev caps.
type AttachStats struct {
	Attached        int
	DroppedPersons  int // event named a person absent from the collection
	DroppedEpisodes int // person exists but has no such episode
}

// attachEvents merges parser output into the collection by id lookup.
// Attachment is per-event atomic: an unresolvable reference drops that event
// and never disturbs a resolvable sibling.
func attachEvents(col *timeline.Collection, byPerson map[string][]*timeline.Event) AttachStats {
	var stats AttachStats
	for personID, events := range byPerson {
		p, ok := col.Person(personID)
		if !ok {
			stats.DroppedPersons += len(events)
			continue
		}
		for _, ev := range events {
			if p.AddEvent(ev) {
				stats.Attached++
			} else {
				stats.DroppedEpisodes++
			}
		}
	}
	return stats
}
