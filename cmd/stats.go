package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/clinical-research/cohort/internal/cache"
	"github.com/clinical-research/cohort/internal/config"
)

// datasetStats is the stats command's report shape.
type datasetStats struct {
	Dataset          string              `json:"dataset"`
	Dev              bool                `json:"dev"`
	Persons          int                 `json:"persons"`
	Episodes         int                 `json:"episodes"`
	EpisodesPerAvg   float64             `json:"episodes_per_person"`
	EventsPerTable   map[string]int      `json:"events_per_table"`
	ActiveVocabulary map[string]string   `json:"active_vocabulary"`
	Transitions      map[string][]string `json:"vocabulary_transitions,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics for the configured dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		art, _, err := fetchArtifact(cmd.Context(), cfg, log, false, false)
		if err != nil {
			return err
		}

		fmt.Println(oj.JSON(collectStats(cfg, art), 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func collectStats(cfg *config.Config, art *cache.Artifact) *datasetStats {
	st := &datasetStats{
		Dataset:          cfg.Dataset,
		Dev:              cfg.Dev,
		Persons:          art.Timeline.Len(),
		EventsPerTable:   make(map[string]int),
		ActiveVocabulary: art.Registry.Active,
		Transitions:      art.Registry.Transitions,
	}
	for _, id := range art.Timeline.PersonIDs() {
		p, _ := art.Timeline.Person(id)
		st.Episodes += len(p.Episodes)
		for _, e := range p.Episodes {
			for table, events := range e.Events {
				st.EventsPerTable[table] += len(events)
			}
		}
	}
	if st.Persons > 0 {
		st.EpisodesPerAvg = float64(st.Episodes) / float64(st.Persons)
	}
	return st
}
