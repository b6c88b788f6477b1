package model

import (
	"sync"
	"time"
)

// Pipeline stages, used to attribute failures in the run summary.
const (
	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageValidate  = "validate"
	StageLoad      = "load"
	StageSkipped   = "skipped"
)

// Failure attributes one non-persisted id to a stage and cause.
type Failure struct {
	ID    int    `json:"id"`
	Stage string `json:"stage"`
	Cause string `json:"cause"`
}

// RunSummary is the finalized result of one pipeline execution. It is a
// plain value, safe to copy, marshal and return; concurrent accumulation
// happens in Tracker.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Targets  int           `json:"targets"`
	Fetched  int           `json:"fetched"`
	Enriched int           `json:"enriched"`
	Rejected int           `json:"rejected"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Failures []Failure     `json:"failures"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Tracker accumulates run counters behind a mutex so stages may report
// concurrently. It lives for one run only; Finalize yields the RunSummary.
type Tracker struct {
	mu sync.Mutex
	s  RunSummary
}

func NewTracker(runID string, targets int) *Tracker {
	return &Tracker{s: RunSummary{RunID: runID, Targets: targets}}
}

func (t *Tracker) RunID() string { return t.s.RunID }

func (t *Tracker) AddFetched() {
	t.mu.Lock()
	t.s.Fetched++
	t.mu.Unlock()
}

func (t *Tracker) AddEnriched() {
	t.mu.Lock()
	t.s.Enriched++
	t.mu.Unlock()
}

func (t *Tracker) AddLoaded() {
	t.mu.Lock()
	t.s.Loaded++
	t.mu.Unlock()
}

// AddRejected records a validation rejection with its violated rules.
func (t *Tracker) AddRejected(id int, cause string) {
	t.mu.Lock()
	t.s.Rejected++
	t.s.Failures = append(t.s.Failures, Failure{ID: id, Stage: StageValidate, Cause: cause})
	t.mu.Unlock()
}

// AddFailure records a per-record failure at the given stage.
func (t *Tracker) AddFailure(id int, stage, cause string) {
	t.mu.Lock()
	t.s.Failures = append(t.s.Failures, Failure{ID: id, Stage: stage, Cause: cause})
	t.mu.Unlock()
}

// AddSkipped records an id that was never processed (deadline or abort).
func (t *Tracker) AddSkipped(id int, cause string) {
	t.mu.Lock()
	t.s.Skipped++
	t.s.Failures = append(t.s.Failures, Failure{ID: id, Stage: StageSkipped, Cause: cause})
	t.mu.Unlock()
}

// FetchFailures counts failures attributed to the fetch stage.
func (t *Tracker) FetchFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.s.Failures {
		if f.Stage == StageFetch {
			n++
		}
	}
	return n
}

// StageCounts is a point-in-time snapshot of the run counters.
type StageCounts struct {
	Targets  int
	Fetched  int
	Enriched int
	Rejected int
	Loaded   int
	Skipped  int
	Failed   int
}

// Counts returns the counter fields in one lock acquisition, for the
// progress logger.
func (t *Tracker) Counts() StageCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StageCounts{
		Targets:  t.s.Targets,
		Fetched:  t.s.Fetched,
		Enriched: t.s.Enriched,
		Rejected: t.s.Rejected,
		Loaded:   t.s.Loaded,
		Skipped:  t.s.Skipped,
		Failed:   len(t.s.Failures),
	}
}

// Finalize stamps the elapsed time and returns the summary with its own
// failures slice, detached from further tracker updates.
func (t *Tracker) Finalize(elapsed time.Duration) RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.s
	out.Elapsed = elapsed
	out.Failures = append([]Failure(nil), t.s.Failures...)
	return out
}
