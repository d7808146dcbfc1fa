// Package sample is the boundary to downstream task consumers: it turns a
// finished timeline into flat sample records by applying a caller-supplied
// task function to each person.
package sample

import (
	"github.com/clinical-research/cohort/internal/timeline"
	"github.com/clinical-research/cohort/internal/vocab"
)

// Sample is one flat task record. The task function decides its keys;
// person and episode ids are conventional.
type Sample map[string]any

// Task converts one person's timeline into zero or more samples. Returning
// an empty slice excludes the person from the task dataset.
type Task func(p *timeline.Person) []Sample

// Set is a task-specific sample dataset.
type Set struct {
	Task     string
	Samples  []Sample
	Registry vocab.Registry
}

// Run applies the task to every person in sorted person-id order and
// concatenates the results.
func Run(col *timeline.Collection, reg vocab.Registry, taskName string, fn Task) *Set {
	set := &Set{Task: taskName, Registry: reg}
	for _, id := range col.PersonIDs() {
		p, _ := col.Person(id)
		set.Samples = append(set.Samples, fn(p)...)
	}
	return set
}
