// Package timeline holds the Person → Episode → Event ownership hierarchy
// assembled from per-table clinical extracts. A Collection is built once per
// run, rewritten in place by the vocabulary mapper, and treated as read-only
// after that.
package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateEpisode is returned when two persons claim the same episode id.
// Episode ids are unique dataset-wide, so this indicates corrupt source data.
var ErrDuplicateEpisode = errors.New("duplicate episode id")

// Collection is the timeline for one run, keyed uniquely by person id.
// All fields are exported so the collection round-trips exactly through gob.
type Collection struct {
	Persons map[string]*Person

	// EpisodeOwner maps episode id → person id across the whole collection.
	// Episode lookups must be global, not per-person: clinical tables name
	// episodes without repeating demographic context.
	EpisodeOwner map[string]string
}

func NewCollection() *Collection {
	return &Collection{
		Persons:      make(map[string]*Person),
		EpisodeOwner: make(map[string]string),
	}
}

// Add inserts a person and registers their episodes in the global index.
func (c *Collection) Add(p *Person) error {
	for _, e := range p.Episodes {
		if owner, exists := c.EpisodeOwner[e.ID]; exists && owner != p.ID {
			return fmt.Errorf("%w: episode %s claimed by persons %s and %s",
				ErrDuplicateEpisode, e.ID, owner, p.ID)
		}
	}
	c.Persons[p.ID] = p
	for _, e := range p.Episodes {
		c.EpisodeOwner[e.ID] = p.ID
	}
	return nil
}

// Person returns the person with the given id.
func (c *Collection) Person(id string) (*Person, bool) {
	p, ok := c.Persons[id]
	return p, ok
}

// Len returns the number of persons.
func (c *Collection) Len() int {
	return len(c.Persons)
}

// PersonIDs returns all person ids in sorted order. Downstream stages iterate
// in this order so runs are deterministic.
func (c *Collection) PersonIDs() []string {
	ids := make([]string, 0, len(c.Persons))
	for id := range c.Persons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AvailableTables returns the sorted union of table names that contributed
// events anywhere in the collection.
func (c *Collection) AvailableTables() []string {
	seen := make(map[string]struct{})
	for _, p := range c.Persons {
		for _, e := range p.Episodes {
			for t := range e.Events {
				seen[t] = struct{}{}
			}
		}
	}
	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
