package report

import (
	"cmp"
	"slices"
	"time"
)

// Summary is the outcome of one run.
type Summary struct {
	RunID   string        `json:"runId,omitempty"`
	Source  string        `json:"source"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`

	// Submitted is the number of URLs the source produced.
	Submitted int64 `json:"submitted"`

	// Processed is the number of items that reached the sink.
	Processed int64 `json:"processed"`

	Stages []StageSummary `json:"stages"`

	// Technologies counts the processed items that matched each technology.
	Technologies map[string]int64 `json:"technologies"`

	// Errors holds the failures of the run, if any.
	Errors []string `json:"errors,omitempty"`
}

// StageSummary holds the final counters of one stage.
type StageSummary struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	State     string `json:"state"`
	Processed int64  `json:"processed"`
	Dropped   int64  `json:"dropped"`
}

// TechnologyCount is one technology and its number of hits.
type TechnologyCount struct {
	Name  string
	Count int64
}

// SortedTechnologies returns the technologies by descending count, then name.
func (s *Summary) SortedTechnologies() []TechnologyCount {
	out := make([]TechnologyCount, 0, len(s.Technologies))
	for name, count := range s.Technologies {
		out = append(out, TechnologyCount{Name: name, Count: count})
	}
	slices.SortFunc(out, func(a, b TechnologyCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Dropped returns the number of items dropped across all stages.
func (s *Summary) Dropped() int64 {
	var total int64
	for _, st := range s.Stages {
		total += st.Dropped
	}
	return total
}

// Succeeded reports whether the run finished without errors.
func (s *Summary) Succeeded() bool {
	return len(s.Errors) == 0
}
