package vocab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-research/cohort/internal/timeline"
)

// stubService hands out fixed code fan-outs keyed by source code.
type stubService struct {
	codes map[string][]string
	err   error
}

func (s *stubService) CrossMap(source, target string) (CrossMapper, error) {
	if s.err != nil {
		return nil, s.err
	}
	return stubMapper{codes: s.codes}, nil
}

type stubMapper struct {
	codes map[string][]string
	err   error
}

func (m stubMapper) Map(ctx context.Context, code string, _, _ map[string]any) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.codes[code], nil
}

func mappedCollection(t *testing.T) *timeline.Collection {
	t.Helper()
	col := timeline.NewCollection()
	p := &timeline.Person{ID: "P1"}
	ep := &timeline.Episode{ID: "V1", PersonID: "P1"}
	ts := time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)
	ep.AddEvent(&timeline.Event{
		Code: "E11.9", Vocabulary: "ICD10CM", Table: "condition_occurrence",
		EpisodeID: "V1", PersonID: "P1", Timestamp: ts,
	})
	ep.AddEvent(&timeline.Event{
		Code: "I10", Vocabulary: "ICD10CM", Table: "condition_occurrence",
		EpisodeID: "V1", PersonID: "P1", Timestamp: ts.Add(time.Hour),
	})
	p.AddEpisode(ep)
	require.NoError(t, col.Add(p))
	return col
}

func TestMapperApply_FanOut(t *testing.T) {
	col := mappedCollection(t)
	svc := &stubService{codes: map[string][]string{
		"E11.9": {"C1a", "C1b"},
		"I10":   {"C2"},
	}}

	mapping := Mapping{"ICD10CM": {Vocabulary: "CCSCM"}}
	m, err := NewMapper(mapping, svc, zerolog.Nop())
	require.NoError(t, err)

	reg, err := m.Apply(context.Background(), col, NewRegistry(map[string]string{
		"condition_occurrence": "ICD10CM",
	}))
	require.NoError(t, err)

	p, _ := col.Person("P1")
	events := p.Episodes[0].EventList("condition_occurrence")
	require.Len(t, events, 3)

	// Fan-out copies keep service order and inherit everything but the code.
	assert.Equal(t, "C1a", events[0].Code)
	assert.Equal(t, "C1b", events[1].Code)
	assert.Equal(t, "C2", events[2].Code)
	assert.Equal(t, events[0].Timestamp, events[1].Timestamp)
	for _, ev := range events {
		assert.Equal(t, "CCSCM", ev.Vocabulary)
		assert.Equal(t, "V1", ev.EpisodeID)
	}

	assert.Equal(t, "CCSCM", reg.Active["condition_occurrence"])
	assert.Equal(t, []string{"ICD10CM", "CCSCM"}, reg.Transitions["condition_occurrence"])
}

func TestMapperApply_EmptyFanOutRemovesEvent(t *testing.T) {
	col := mappedCollection(t)
	svc := &stubService{codes: map[string][]string{"I10": {"C2"}}}

	m, err := NewMapper(Mapping{"ICD10CM": {Vocabulary: "CCSCM"}}, svc, zerolog.Nop())
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), col, NewRegistry(nil))
	require.NoError(t, err)

	p, _ := col.Person("P1")
	events := p.Episodes[0].EventList("condition_occurrence")
	require.Len(t, events, 1)
	assert.Equal(t, "C2", events[0].Code)
}

func TestMapperApply_NoMatchIsIdentity(t *testing.T) {
	col := mappedCollection(t)
	svc := &stubService{codes: map[string][]string{}}

	m, err := NewMapper(Mapping{"NDC": {Vocabulary: "ATC"}}, svc, zerolog.Nop())
	require.NoError(t, err)

	reg, err := m.Apply(context.Background(), col, NewRegistry(map[string]string{
		"condition_occurrence": "ICD10CM",
	}))
	require.NoError(t, err)

	p, _ := col.Person("P1")
	events := p.Episodes[0].EventList("condition_occurrence")
	require.Len(t, events, 2)
	assert.Equal(t, "E11.9", events[0].Code)
	assert.Equal(t, "ICD10CM", events[0].Vocabulary)
	assert.Equal(t, []string{"ICD10CM"}, reg.Transitions["condition_occurrence"])
}

func TestNewMapper_ServiceFailure(t *testing.T) {
	boom := errors.New("no such vocabulary pair")
	_, err := NewMapper(Mapping{"ICD9CM": {Vocabulary: "CCSCM"}}, &stubService{err: boom}, zerolog.Nop())
	require.ErrorIs(t, err, boom)
}

func TestMapperApply_LookupFailureIsFatal(t *testing.T) {
	col := mappedCollection(t)
	boom := errors.New("service unavailable")

	m := &Mapper{
		mapping: Mapping{"ICD10CM": {Vocabulary: "CCSCM"}},
		tools:   map[string]CrossMapper{"ICD10CM>CCSCM": stubMapper{err: boom}},
		log:     zerolog.Nop(),
	}
	_, err := m.Apply(context.Background(), col, NewRegistry(nil))
	require.ErrorIs(t, err, boom)
}
