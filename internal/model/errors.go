package model

import "fmt"

// FetchError is a terminal fetch failure for one id: retries exhausted, or a
// non-retryable client response.
type FetchError struct {
	ID         int
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode == 404:
		return fmt.Sprintf("fetch %d: not found", e.ID)
	case e.StatusCode > 0:
		return fmt.Sprintf("fetch %d: status %d after %d attempt(s): %v", e.ID, e.StatusCode, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("fetch %d: %v after %d attempt(s)", e.ID, e.Err, e.Attempts)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Cause is the short attribution recorded in the run summary.
func (e *FetchError) Cause() string {
	if e.StatusCode == 404 {
		return "FetchFailure: not found"
	}
	return fmt.Sprintf("FetchFailure: %v", e.Err)
}

// MalformedInputError means normalization cannot produce a valid record.
type MalformedInputError struct {
	ID     int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed record %d: %s", e.ID, e.Reason)
}

// PersistenceError is a row-level write failure; the batch continues.
type PersistenceError struct {
	ID  int
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d: %v", e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// OutageError means connectivity to the source or the store is gone.
// It is fatal for the remainder of a run; partial results are kept.
type OutageError struct {
	Reason string
	Err    error
}

func (e *OutageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("systemic outage: %s: %v", e.Reason, e.Err)
	}
	return "systemic outage: " + e.Reason
}

func (e *OutageError) Unwrap() error { return e.Err }
