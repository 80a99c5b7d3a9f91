package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/power"
)

// scriptedFetcher returns the next scripted result on each call. When the
// script runs out it keeps returning the final entry.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
	times   []time.Time
	onCall  func(call int)
}

type fetchResult struct {
	snapshot *power.Snapshot
	err      error
}

func (f *scriptedFetcher) FetchMetrics(ctx context.Context) (*power.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.times = append(f.times, time.Now())
	idx := call - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return r.snapshot, r.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ok(watts int) fetchResult {
	return fetchResult{snapshot: &power.Snapshot{CurrentWatts: power.Int(watts)}}
}

func fail(err error) fetchResult {
	return fetchResult{err: err}
}

type retryNotice struct {
	attempt, max int
	delay        time.Duration
}

// recordingReporter captures every notification for assertions.
type recordingReporter struct {
	mu          sync.Mutex
	started     int
	expected    int
	retries     []retryNotice
	failures    []error
	progress    []Progress
	interrupted []int
	finished    []int
}

func (r *recordingReporter) Started(_, _ time.Duration, expected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.expected = expected
}

func (r *recordingReporter) Retrying(attempt, max int, delay time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, retryNotice{attempt: attempt, max: max, delay: delay})
}

func (r *recordingReporter) CollectionFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *recordingReporter) SampleCollected(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingReporter) Interrupted(collected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = append(r.interrupted, collected)
}

func (r *recordingReporter) Finished(collected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, collected)
}

func newFastCollector(f Fetcher, r Reporter, base time.Duration) *Collector {
	c := NewCollector(f, r)
	c.BaseDelay = base
	return c
}
