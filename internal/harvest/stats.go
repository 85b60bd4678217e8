package harvest

import (
	"time"

	"github.com/jmylchreest/screenharvest/internal/logger"
	"github.com/jmylchreest/screenharvest/internal/screener"
)

// Stats summarizes a harvest run. It doubles as the screener.Events
// receiver for the run.
type Stats struct {
	Pages      int                      `yaml:"pages"`
	RowsParsed int                      `yaml:"rows_parsed"`
	Unique     int                      `yaml:"unique"`
	Duplicates int                      `yaml:"duplicates"`
	EmptyKeys  int                      `yaml:"empty_keys"`
	Appends    int                      `yaml:"appends"`
	Refreshes  map[string]int           `yaml:"refreshes"`
	Warnings   map[screener.Warning]int `yaml:"warnings"`
	StopReason screener.StopReason      `yaml:"stop_reason"`
	Elapsed    time.Duration            `yaml:"elapsed"`
}

func newStats() *Stats {
	return &Stats{
		Refreshes: make(map[string]int),
		Warnings:  make(map[screener.Warning]int),
	}
}

// Warning implements screener.Events.
func (s *Stats) Warning(w screener.Warning) {
	s.Warnings[w]++
}

// Refreshed implements screener.Events.
func (s *Stats) Refreshed(trigger screener.Trigger, outcome screener.RefreshOutcome) {
	s.Refreshes[outcome.String()]++
	logger.Debug("table refreshed", "trigger", trigger, "outcome", outcome)
}

// WarningCount returns the total number of warnings.
func (s *Stats) WarningCount() int {
	n := 0
	for _, c := range s.Warnings {
		n += c
	}
	return n
}
