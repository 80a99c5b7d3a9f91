package monitor

import "time"

// Reporter receives progress and error notices from the Collector and Loop.
// Nothing in this package writes to the terminal directly; quiet mode is a
// NopReporter and interactive mode is a reporter that renders to stderr.
// Implementations used across concurrent targets must be safe for
// concurrent use.
type Reporter interface {
	Started(duration, interval time.Duration, expected int)
	Retrying(attempt, maxAttempts int, delay time.Duration, err error)
	CollectionFailed(err error)
	SampleCollected(p Progress)
	Interrupted(collected int)
	Finished(collected int)
}

// NopReporter discards every notification.
type NopReporter struct{}

func (NopReporter) Started(time.Duration, time.Duration, int)  {}
func (NopReporter) Retrying(int, int, time.Duration, error)    {}
func (NopReporter) CollectionFailed(error)                     {}
func (NopReporter) SampleCollected(Progress)                   {}
func (NopReporter) Interrupted(int)                            {}
func (NopReporter) Finished(int)                               {}

func orNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}
