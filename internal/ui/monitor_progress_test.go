package ui

import (
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/power"
	"github.com/stretchr/testify/assert"
)

func TestMonitorReporterLines(t *testing.T) {
	buf := &syncBuffer{}
	r := NewMonitorProgress(buf, false).Reporter("")

	r.Started(time.Hour, 5*time.Minute, 12)
	r.Retrying(1, 3, 2*time.Second, stderrors.New("503 Service Unavailable"))
	r.SampleCollected(monitor.Progress{
		Sample: monitor.Sample{
			Timestamp:   time.Date(2026, 3, 1, 14, 5, 0, 0, time.Local),
			SystemWatts: power.Int(245),
		},
		Count:     3,
		Expected:  12,
		Percent:   25,
		Elapsed:   15*time.Minute + 300*time.Millisecond,
		Remaining: 45 * time.Minute,
	})
	r.CollectionFailed(errors.WrapWithCode(stderrors.New("timeout"), errors.ErrCollection,
		"Error collecting sample after 3 attempts", ""))
	r.Interrupted(3)
	r.Finished(3)

	out := buf.String()
	assert.Contains(t, out, "Starting 1h monitoring (sampling every 5m)\n")
	assert.Contains(t, out, "Expected 12 samples. Press CTRL+C to stop early.\n")
	assert.Contains(t, out, "Error collecting sample (attempt 1/3): 503 Service Unavailable. Retrying in 2s...")
	assert.Contains(t, out, "[2026-03-01 14:05:00] Sample 3/12 (25.0%) - System: 245W - Elapsed: 0:15:00 - Remaining: 0:45:00\n")
	assert.Contains(t, out, "Error collecting sample after 3 attempts: timeout")
	assert.Contains(t, out, "Monitoring interrupted.\n")
	assert.Contains(t, out, "Monitoring complete. Collected 3 samples.\n")
}

func TestMonitorReporterMissingSystemReading(t *testing.T) {
	buf := &syncBuffer{}
	NewMonitorProgress(buf, false).Reporter("").SampleCollected(monitor.Progress{
		Sample: monitor.Sample{Timestamp: time.Now()}, Count: 1, Expected: 2, Percent: 50,
	})
	assert.Contains(t, buf.String(), "System: n/a")
}

func TestMonitorReporterPrefix(t *testing.T) {
	buf := &syncBuffer{}
	r := NewMonitorProgress(buf, false).Reporter("idrac-01")
	r.Started(10*time.Minute, 5*time.Minute, 2)
	r.Finished(2)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.True(t, strings.HasPrefix(line, "[idrac-01] "), "line %q", line)
	}
}

func TestMonitorReporterBar(t *testing.T) {
	buf := &syncBuffer{}
	NewMonitorProgress(buf, true).Reporter("").SampleCollected(monitor.Progress{
		Sample: monitor.Sample{Timestamp: time.Now(), SystemWatts: power.Int(1)}, Count: 1, Expected: 2, Percent: 50,
	})
	assert.Contains(t, buf.String(), "(50.0%)")
	assert.Greater(t, len([]rune(buf.String())), progressBarWidth)
}

func TestMonitorReportersDoNotInterleave(t *testing.T) {
	buf := &syncBuffer{}
	mp := NewMonitorProgress(buf, false)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(r monitor.Reporter) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Finished(i)
			}
		}(mp.Reporter(name))
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 200)
	for _, line := range lines {
		assert.Regexp(t, `^\[[abcd]\] Monitoring complete\. Collected \d+ samples\.$`, line)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{-time.Second, "0:00:00"},
		{1500 * time.Millisecond, "0:00:01"},
		{5 * time.Minute, "0:05:00"},
		{23*time.Hour + 59*time.Minute + 59*time.Second, "23:59:59"},
		{24 * time.Hour, "1 day, 0:00:00"},
		{50 * time.Hour, "2 days, 2:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.in), "FormatClock(%s)", tt.in)
	}
}

func TestClampFraction(t *testing.T) {
	assert.Equal(t, 0.0, clampFraction(-0.5))
	assert.Equal(t, 0.5, clampFraction(0.5))
	assert.Equal(t, 1.0, clampFraction(1.5))
}
