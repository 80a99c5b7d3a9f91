package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
)

// Loop drives a Collector at a fixed interval until a wall-clock deadline
// or until its context is cancelled.
//
// The deadline is authoritative; Series.Expected is only a progress
// estimate and may be off by one under clock drift.
type Loop struct {
	collector *Collector
	reporter  Reporter
	duration  time.Duration
	interval  time.Duration

	mu    sync.Mutex
	state State

	now func() time.Time
}

// NewLoop creates a loop that samples every interval for duration.
func NewLoop(collector *Collector, duration, interval time.Duration, reporter Reporter) *Loop {
	return &Loop{
		collector: collector,
		reporter:  orNop(reporter),
		duration:  duration,
		interval:  interval,
		state:     StateIdle,
		now:       time.Now,
	}
}

// State returns the current lifecycle state. Safe to call while Run is active.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run collects samples until the deadline passes or ctx is cancelled.
//
// The returned Series is never nil and holds whatever was collected. If no
// sample was collected the loop ends in StateFailed and the error has code
// ErrNoSamples; callers must not aggregate in that case. A cancelled ctx is
// not an error: the loop ends in StateInterrupted with its partial series.
func (l *Loop) Run(ctx context.Context) (*Series, error) {
	series := &Series{
		Duration: l.duration,
		Interval: l.interval,
	}

	if l.duration <= 0 || l.interval <= 0 {
		l.setState(StateFailed)
		return series, errors.New(errors.ErrConfig,
			fmt.Sprintf("Monitoring needs a positive duration and interval (got %s every %s)", l.duration, l.interval),
			"Try something like --monitor 1h --sample-interval 5m")
	}

	l.setState(StateRunning)

	start := l.now()
	deadline := start.Add(l.duration)
	series.Expected = int(l.duration / l.interval)

	l.reporter.Started(l.duration, l.interval, series.Expected)

	for l.now().Before(deadline) && ctx.Err() == nil {
		sample, err := l.collector.Collect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.reporter.CollectionFailed(err)
			if !l.sleep(ctx, minDuration(l.interval, deadline.Sub(l.now()))) {
				break
			}
			continue
		}

		series.append(sample)
		l.reporter.SampleCollected(l.progress(series, start, deadline))

		// Last sample: the next one would land at or after the deadline.
		next := series.Samples[series.Len()-1].Timestamp.Add(l.interval)
		if !next.Before(deadline) {
			break
		}

		if !l.sleep(ctx, l.interval) {
			break
		}
	}

	if ctx.Err() != nil {
		series.Interrupted = true
		l.reporter.Interrupted(series.Len())
	}
	l.reporter.Finished(series.Len())

	if series.Len() == 0 {
		l.setState(StateFailed)
		return series, noSamplesError()
	}

	if series.Interrupted {
		l.setState(StateInterrupted)
	} else {
		l.setState(StateCompleted)
	}
	return series, nil
}

func (l *Loop) progress(series *Series, start, deadline time.Time) Progress {
	now := l.now()
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	p := Progress{
		Sample:    series.Samples[series.Len()-1],
		Count:     series.Len(),
		Expected:  series.Expected,
		Elapsed:   now.Sub(start),
		Remaining: remaining,
	}
	if series.Expected > 0 {
		p.Percent = float64(p.Count) / float64(series.Expected) * 100
	}
	return p
}

// sleep waits for d or until ctx is done. It returns false if ctx ended
// the wait.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func noSamplesError() error {
	return errors.New(errors.ErrNoSamples,
		"No samples collected",
		"Nothing to average. Check the controller is reachable and try again.")
}
