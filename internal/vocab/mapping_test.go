package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(map[string]any{
		"ICD9CM": "CCSCM",
		"NDC": map[string]any{
			"target":        "ATC",
			"target_kwargs": map[string]any{"level": 3},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, Target{Vocabulary: "CCSCM"}, m["ICD9CM"])
	assert.Equal(t, "ATC", m["NDC"].Vocabulary)
	assert.Equal(t, map[string]any{"level": 3}, m["NDC"].TargetKwargs)
}

func TestParseMapping_Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"non-string scalar", map[string]any{"ICD9CM": 7}, "ICD9CM"},
		{"unknown option", map[string]any{"NDC": map[string]any{"target": "ATC", "levels": 3}}, "levels"},
		{"missing target", map[string]any{"NDC": map[string]any{"target_kwargs": map[string]any{}}}, "no target vocabulary"},
		{"non-map kwargs", map[string]any{"NDC": map[string]any{"target": "ATC", "source_kwargs": "x"}}, "source_kwargs"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMapping(tc.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestMappingEntries(t *testing.T) {
	m := Mapping{
		"NDC":    {Vocabulary: "ATC", TargetKwargs: map[string]any{"level": 3}},
		"ICD9CM": {Vocabulary: "CCSCM"},
	}
	// Sorted and kwargs-qualified: the cache key hashes this form.
	assert.Equal(t, []string{"ICD9CM>CCSCM", "NDC>ATC;level=3"}, m.Entries())
}
