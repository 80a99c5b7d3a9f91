package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/rileyhilliard/idrac-power/internal/duration"
	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
)

const progressBarWidth = 24

// MonitorProgress renders monitoring notices for one or more targets to a
// shared writer. Lines from concurrent targets are written whole, never
// interleaved.
type MonitorProgress struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progress.Model
	now func() time.Time
}

// NewMonitorProgress creates a renderer writing to w. showBar appends a
// progress bar to every sample line.
func NewMonitorProgress(w io.Writer, showBar bool) *MonitorProgress {
	m := &MonitorProgress{w: w, now: time.Now}
	if showBar {
		bar := progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(progressBarWidth),
			progress.WithoutPercentage(),
		)
		bar.EmptyColor = string(ColorMuted)
		m.bar = &bar
	}
	return m
}

// Reporter returns a monitor.Reporter for one target. A non-empty name
// prefixes every line with "[name] ".
func (m *MonitorProgress) Reporter(name string) monitor.Reporter {
	prefix := ""
	if name != "" {
		prefix = "[" + name + "] "
	}
	return &monitorReporter{parent: m, prefix: prefix}
}

func (m *MonitorProgress) printf(prefix, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, prefix+format+"\n", args...)
}

type monitorReporter struct {
	parent *MonitorProgress
	prefix string
}

func (r *monitorReporter) Started(d, interval time.Duration, expected int) {
	r.parent.printf(r.prefix, "Starting %s monitoring (sampling every %s)",
		duration.FormatDuration(d), duration.FormatDuration(interval))
	r.parent.printf(r.prefix, "Expected %d samples. Press CTRL+C to stop early.", expected)
}

func (r *monitorReporter) Retrying(attempt, maxAttempts int, delay time.Duration, err error) {
	r.parent.printf(r.prefix, "%s Error collecting sample (attempt %d/%d): %s. Retrying in %s...",
		WarningStyle().Render(SymbolWarning), attempt, maxAttempts, errors.Message(err), delay)
}

func (r *monitorReporter) CollectionFailed(err error) {
	r.parent.printf(r.prefix, "%s %s", ErrorStyle().Render(SymbolFail), errors.Message(err))
}

func (r *monitorReporter) SampleCollected(p monitor.Progress) {
	system := "n/a"
	if p.Sample.SystemWatts != nil {
		system = fmt.Sprintf("%dW", *p.Sample.SystemWatts)
	}

	line := fmt.Sprintf("[%s] Sample %d/%d (%.1f%%) - System: %s - Elapsed: %s - Remaining: %s",
		p.Sample.Timestamp.Format("2006-01-02 15:04:05"),
		p.Count, p.Expected, p.Percent, system,
		FormatClock(p.Elapsed), FormatClock(p.Remaining))

	if bar := r.parent.bar; bar != nil {
		line += "  " + bar.ViewAs(clampFraction(p.Percent/100))
	}
	r.parent.printf(r.prefix, "%s", line)
}

func (r *monitorReporter) Interrupted(collected int) {
	r.parent.printf(r.prefix, "Monitoring interrupted.")
}

func (r *monitorReporter) Finished(collected int) {
	r.parent.printf(r.prefix, "Monitoring complete. Collected %d samples.", collected)
}

// FormatClock renders d as H:MM:SS, prefixed with a day count when d is a
// day or longer. Fractions of a second are dropped.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	clock := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	default:
		return clock
	}
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
