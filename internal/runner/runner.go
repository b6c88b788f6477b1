// Package runner wires the pipeline stages together: a bounded fetch pool
// feeds normalize/validate inline, accepted records flow to a bounded load
// pool, and every id is accounted for in the run summary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokedex-pipeline/internal/model"
	"github.com/pokedex-pipeline/internal/progress"
	"github.com/pokedex-pipeline/internal/quality"
	"github.com/pokedex-pipeline/internal/transform"
)

// Fail-fast does not engage until this many fetches have completed, so a
// couple of early 404s cannot kill a run.
const abortMinSample = 10

// Fetcher retrieves raw records from the upstream API.
type Fetcher interface {
	FetchPokemon(ctx context.Context, id int) (*model.RawRecord, error)
	EvolutionChainID(ctx context.Context, id int) (*int, error)
}

// Loader persists one validated record. Implementations return
// *model.PersistenceError for row-level failures and *model.OutageError when
// the backend itself is gone.
type Loader interface {
	Load(ctx context.Context, rec *model.NormalizedRecord) error
}

// Mirror receives loaded records on a best-effort basis.
type Mirror interface {
	Write(ctx context.Context, rec *model.NormalizedRecord) error
}

// Pipeline holds the stages and tuning for one run.
type Pipeline struct {
	Fetcher Fetcher
	Loader  Loader
	Mirror  Mirror // optional
	Gate    *quality.Gate

	Concurrency int
	LoadWorkers int
	AbortRatio  float64
	WithSpecies bool
}

// Run processes ids end to end and returns the finalized summary. The error
// is non-nil only for run-level outages; per-record failures live in the
// summary. ctx carries the run deadline: ids not admitted before it fires are
// recorded as skipped.
func (p *Pipeline) Run(ctx context.Context, ids []int) (model.RunSummary, error) {
	summary := model.NewTracker(uuid.NewString(), len(ids))
	runStart := time.Now()

	log.Printf("run %s starting: %d targets (fetch_workers=%d, load_workers=%d, abort_ratio=%.2f, species=%v)",
		summary.RunID(), len(ids), p.Concurrency, p.LoadWorkers, p.AbortRatio, p.WithSpecies)

	progressCtx, stopProgress := context.WithCancel(context.Background())
	defer stopProgress()
	go progress.Run(progressCtx, summary, 5*time.Second)

	idQueue := make(chan int)
	loadQueue := make(chan *model.NormalizedRecord, p.LoadWorkers*4)

	abort := newAbortSignal()

	// The deadline gates admission only: work already admitted runs to
	// completion under its own request timeouts.
	stageCtx := context.WithoutCancel(ctx)

	var fetchWg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		fetchWg.Add(1)
		go func() {
			defer fetchWg.Done()
			p.runFetchWorker(stageCtx, idQueue, loadQueue, summary, abort)
		}()
	}

	var loadWg sync.WaitGroup
	for i := 0; i < p.LoadWorkers; i++ {
		loadWg.Add(1)
		go func() {
			defer loadWg.Done()
			p.runLoadWorker(stageCtx, loadQueue, summary, abort)
		}()
	}

	// Admission loop. Once the deadline fires or abort trips, every
	// remaining id is skipped rather than silently dropped.
admit:
	for i, id := range ids {
		select {
		case idQueue <- id:
		case <-ctx.Done():
			skipRemaining(summary, ids[i:], "deadline exceeded")
			break admit
		case <-abort.ch:
			skipRemaining(summary, ids[i:], abort.cause())
			break admit
		}
	}
	close(idQueue)
	fetchWg.Wait()
	close(loadQueue)
	loadWg.Wait()

	stopProgress()
	out := summary.Finalize(time.Since(runStart))
	log.Printf("run %s finished in %s: %d/%d loaded, %d rejected, %d skipped, %d failures",
		out.RunID, out.Elapsed.Round(time.Millisecond), out.Loaded, out.Targets,
		out.Rejected, out.Skipped, len(out.Failures))
	return out, abort.outage()
}

func (p *Pipeline) runFetchWorker(ctx context.Context, ids <-chan int, loadQueue chan<- *model.NormalizedRecord, summary *model.Tracker, abort *abortSignal) {
	for id := range ids {
		rec, ok := p.processOne(ctx, id, summary)
		p.checkFailureRate(summary, abort)
		if !ok {
			continue
		}
		select {
		case loadQueue <- rec:
		case <-abort.ch:
			summary.AddSkipped(rec.ID, abort.cause())
		}
	}
}

// processOne runs fetch, normalize, enrich and validate for a single id.
// It returns the record only when it passed the gate.
func (p *Pipeline) processOne(ctx context.Context, id int, summary *model.Tracker) (*model.NormalizedRecord, bool) {
	raw, err := p.Fetcher.FetchPokemon(ctx, id)
	if err != nil {
		summary.AddFailure(id, model.StageFetch, failureCause(err))
		return nil, false
	}
	summary.AddFetched()

	rec, err := transform.Normalize(raw)
	if err != nil {
		summary.AddFailure(id, model.StageNormalize, err.Error())
		return nil, false
	}
	rec = transform.Enrich(rec)

	if p.WithSpecies {
		chainID, err := p.Fetcher.EvolutionChainID(ctx, id)
		if err != nil {
			// Enrichment only; the record still loads without it.
			log.Printf("id %d: species lookup failed: %v", id, err)
		} else {
			rec.EvolutionChainID = chainID
		}
	}
	summary.AddEnriched()

	outcome := p.Gate.Validate(rec)
	if !outcome.Accepted {
		summary.AddRejected(id, strings.Join(outcome.Violations, "; "))
		return nil, false
	}
	return rec, true
}

func (p *Pipeline) runLoadWorker(ctx context.Context, loadQueue <-chan *model.NormalizedRecord, summary *model.Tracker, abort *abortSignal) {
	for rec := range loadQueue {
		if err := p.Loader.Load(ctx, rec); err != nil {
			summary.AddFailure(rec.ID, model.StageLoad, err.Error())
			var outage *model.OutageError
			if errors.As(err, &outage) {
				abort.trip("aborted: "+err.Error(), err)
				// Drain so fetch workers are never stuck on send.
				for rec := range loadQueue {
					summary.AddSkipped(rec.ID, abort.cause())
				}
				return
			}
			continue
		}
		summary.AddLoaded()
		if p.Mirror != nil {
			if err := p.Mirror.Write(ctx, rec); err != nil {
				log.Printf("id %d: analytics mirror write failed: %v", rec.ID, err)
			}
		}
	}
}

// checkFailureRate trips the abort signal when fetch failures dominate.
func (p *Pipeline) checkFailureRate(summary *model.Tracker, abort *abortSignal) {
	if p.AbortRatio <= 0 {
		return
	}
	failed := summary.FetchFailures()
	completed := summary.Counts().Fetched + failed
	if completed < abortMinSample {
		return
	}
	ratio := float64(failed) / float64(completed)
	if ratio > p.AbortRatio {
		reason := fmt.Sprintf("fetch failure rate %.0f%% over %d attempts", ratio*100, completed)
		abort.trip("aborted: "+reason, &model.OutageError{Reason: reason})
	}
}

// failureCause prefers the short attribution a FetchError carries.
func failureCause(err error) string {
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return fe.Cause()
	}
	return err.Error()
}

func skipRemaining(summary *model.Tracker, ids []int, cause string) {
	for _, id := range ids {
		summary.AddSkipped(id, cause)
	}
}

// abortSignal trips at most once and remembers why. An outage trip also
// carries the error that ends the run.
type abortSignal struct {
	once sync.Once
	ch   chan struct{}

	mu        sync.Mutex
	reason    string
	outageErr error
}

func newAbortSignal() *abortSignal {
	return &abortSignal{ch: make(chan struct{})}
}

func (a *abortSignal) trip(reason string, err error) {
	a.once.Do(func() {
		a.mu.Lock()
		a.reason = reason
		a.outageErr = err
		a.mu.Unlock()
		log.Printf("run aborting: %s", reason)
		close(a.ch)
	})
}

func (a *abortSignal) cause() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reason == "" {
		return "aborted"
	}
	return a.reason
}

func (a *abortSignal) outage() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outageErr
}
