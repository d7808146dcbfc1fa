package vocab

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clinical-research/cohort/internal/timeline"
)

// Mapper applies a code-mapping configuration to an assembled timeline.
// Cross-mapping tools are loaded once per configured (source, target) pair
// at construction, so a bad configuration fails before any event is touched.
type Mapper struct {
	mapping Mapping
	tools   map[string]CrossMapper
	log     zerolog.Logger
}

// NewMapper validates the mapping against the service and preloads one
// CrossMapper per configured pair.
func NewMapper(mapping Mapping, svc Service, log zerolog.Logger) (*Mapper, error) {
	tools := make(map[string]CrossMapper, len(mapping))
	for source, t := range mapping {
		tool, err := svc.CrossMap(source, t.Vocabulary)
		if err != nil {
			return nil, fmt.Errorf("load cross map %s to %s: %w", source, t.Vocabulary, err)
		}
		tools[source+">"+t.Vocabulary] = tool
	}
	return &Mapper{mapping: mapping, tools: tools, log: log}, nil
}

// Apply rewrites every event whose vocabulary has a configured source
// mapping and returns the resulting vocabulary registry. Events with no
// configured mapping pass through untouched, so applying an empty mapping
// is the identity.
//
// Fan-out: a source event is replaced by exactly as many events as the
// service returns codes, each a copy with only code and vocabulary
// rewritten, in the service's order. Zero codes removes the event.
func (m *Mapper) Apply(ctx context.Context, col *timeline.Collection, reg Registry) (Registry, error) {
	var mapped, produced int

	for _, personID := range col.PersonIDs() {
		p, _ := col.Person(personID)
		for _, episode := range p.Episodes {
			for _, table := range episode.AvailableTables() {
				tableMapped, err := m.applyTable(ctx, episode, table, &reg)
				if err != nil {
					return reg, err
				}
				mapped += tableMapped.sources
				produced += tableMapped.outputs
			}
		}
	}

	if len(m.mapping) > 0 {
		m.log.Info().
			Int("mapped_events", mapped).
			Int("produced_events", produced).
			Msg("converted event codes")
	}
	return reg, nil
}

type tableMapStats struct {
	sources int
	outputs int
}

func (m *Mapper) applyTable(ctx context.Context, episode *timeline.Episode, table string, reg *Registry) (tableMapStats, error) {
	var stats tableMapStats
	events := episode.EventList(table)
	out := make([]*timeline.Event, 0, len(events))

	for _, ev := range events {
		target, ok := m.mapping[ev.Vocabulary]
		if !ok {
			out = append(out, ev)
			continue
		}

		tool := m.tools[ev.Vocabulary+">"+target.Vocabulary]
		codes, err := tool.Map(ctx, ev.Code, target.SourceKwargs, target.TargetKwargs)
		if err != nil {
			return stats, fmt.Errorf("map code %s (%s to %s): %w", ev.Code, ev.Vocabulary, target.Vocabulary, err)
		}

		for _, code := range codes {
			dup := ev.Clone()
			dup.Code = code
			dup.Vocabulary = target.Vocabulary
			out = append(out, dup)
		}
		stats.sources++
		stats.outputs += len(codes)
		reg.record(table, target.Vocabulary)
	}

	if stats.sources > 0 {
		episode.SetEventList(table, out)
	}
	return stats, nil
}
