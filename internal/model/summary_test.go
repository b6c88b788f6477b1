package model

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestTrackerConcurrentIncrements(t *testing.T) {
	tr := NewTracker("run-1", 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			tr.AddFetched()
			if id%10 == 0 {
				tr.AddFailure(id, StageFetch, "FetchFailure: boom")
			} else {
				tr.AddEnriched()
				tr.AddLoaded()
			}
		}(i)
	}
	wg.Wait()

	c := tr.Counts()
	if c.Fetched != 50 || c.Loaded != 45 {
		t.Errorf("Expected 50 fetched / 45 loaded, got %d/%d", c.Fetched, c.Loaded)
	}
	if tr.FetchFailures() != 5 {
		t.Errorf("Expected 5 fetch failures, got %d", tr.FetchFailures())
	}
}

func TestFinalizeReturnsDetachedCopy(t *testing.T) {
	tr := NewTracker("run-2", 3)
	tr.AddSkipped(2, "deadline exceeded")

	out := tr.Finalize(2 * time.Second)
	if out.Elapsed != 2*time.Second || out.Skipped != 1 {
		t.Errorf("Finalize copy wrong: %+v", out)
	}

	tr.AddSkipped(3, "deadline exceeded")
	if len(out.Failures) != 1 {
		t.Errorf("Copy must not share the failures slice, got %d entries", len(out.Failures))
	}
}

// RunSummary is a plain value: assigning and marshaling copies must be safe
// while the tracker keeps accumulating.
func TestRunSummaryCopiesFreely(t *testing.T) {
	tr := NewTracker("run-3", 2)
	tr.AddFetched()
	tr.AddLoaded()

	out := tr.Finalize(time.Second)
	copied := out
	copied.Loaded = 99
	if out.Loaded != 1 {
		t.Errorf("Copy mutation leaked back: %d", out.Loaded)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			tr.AddFetched()
		}
		close(done)
	}()
	line, err := json.Marshal(out)
	<-done
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded RunSummary
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.RunID != "run-3" || decoded.Loaded != 1 {
		t.Errorf("Round trip wrong: %+v", decoded)
	}
}

func TestFetchErrorCause(t *testing.T) {
	notFound := &FetchError{ID: 9, StatusCode: 404, Attempts: 1}
	if notFound.Cause() != "FetchFailure: not found" {
		t.Errorf("Unexpected cause %q", notFound.Cause())
	}
	if notFound.Error() != "fetch 9: not found" {
		t.Errorf("Unexpected message %q", notFound.Error())
	}
}
