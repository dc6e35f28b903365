// internal/errors/errors.go
package errors

import (
	"fmt"
	"time"
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// TransientNetworkError is returned once a request has exhausted its retries.
type TransientNetworkError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// RateLimitError describes a rate-limit response. The client waits until Reset and retries;
// it only surfaces when the wait itself is interrupted.
type RateLimitError struct {
	Reset time.Time
	Err   error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s: %v", e.Reset.UTC().Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// MalformedRecordError is returned by the normalizer when a required field is absent or has the wrong shape.
type MalformedRecordError struct {
	Source string
	Key    string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	key := e.Key
	if key == "" {
		key = "<unknown>"
	}
	return fmt.Sprintf("malformed %s record %s: field %q %s", e.Source, key, e.Field, e.Reason)
}

// RecordError is a storage failure specific to one record. The rest of the batch is unaffected.
type RecordError struct {
	Key string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s rejected by store: %v", e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// PersistenceError aborts the current batch; the cursor is not advanced.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// HistoryBoundaryError reports a parent commit missing from a shallow clone.
type HistoryBoundaryError struct {
	SHA      string
	ChildSHA string
}

func (e *HistoryBoundaryError) Error() string {
	return fmt.Sprintf("commit %s (parent of %s) is not present in the local clone", e.SHA, e.ChildSHA)
}

// ThresholdExceededError is returned when too many records in a row were skipped.
type ThresholdExceededError struct {
	Source      string
	Consecutive int
	Last        error
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("%s: %d consecutive anomalies, last: %v", e.Source, e.Consecutive, e.Last)
}

func (e *ThresholdExceededError) Unwrap() error { return e.Last }
