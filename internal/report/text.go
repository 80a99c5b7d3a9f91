package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/idrac-power/internal/duration"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/power"
)

const timestampLayout = "2006-01-02 15:04:05"

// TextFormatter renders human-readable reports.
type TextFormatter struct {
	heading lipgloss.Style
	label   lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
}

// NewTextFormatter creates a text formatter whose styles follow the colour
// profile of w.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return newTextFormatter(lipgloss.NewRenderer(w))
}

// NewPlainTextFormatter creates a text formatter that never emits escape
// sequences. Reports written to files use it.
func NewPlainTextFormatter() *TextFormatter {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return newTextFormatter(r)
}

func newTextFormatter(r *lipgloss.Renderer) *TextFormatter {
	return &TextFormatter{
		heading: r.NewStyle().Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("6")),
		good:    r.NewStyle().Foreground(lipgloss.Color("2")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (f *TextFormatter) Name() string      { return "text" }
func (f *TextFormatter) Extension() string { return ".txt" }

// Reading renders a single snapshot.
func (f *TextFormatter) Reading(s *power.Snapshot) (string, error) {
	var b lines
	b.add("%s %s", f.label.Render("Chassis:"), s.ChassisID)

	if primary := s.PrimaryWatts(); primary != nil {
		name := "Current Power"
		interval := ""
		if s.AverageWatts != nil {
			name = "Average Power"
			if s.AverageIntervalMin != nil && *s.AverageIntervalMin > 0 {
				interval = fmt.Sprintf(" (%dmin avg)", *s.AverageIntervalMin)
			}
		}
		b.add("%s %d W%s", f.label.Render(name+":"), *primary, interval)
	}
	if s.AverageWatts != nil && s.CurrentWatts != nil {
		b.add("%s %d W", f.label.Render("Current Power:"), *s.CurrentWatts)
	}
	f.optionalWatts(&b, "Peak Power:", s.MaxConsumedWatts)
	f.optionalWatts(&b, "Power Limit:", s.PowerLimitWatts)
	f.optionalWatts(&b, "Max Capacity:", s.CapacityWatts)

	if r := s.Redundancy; r != nil {
		b.blank()
		b.add("%s %s (%s) - %d/%d PSUs needed",
			f.label.Render("Redundancy:"), r.Mode, f.health(r.Status), r.MinNeeded, r.MaxSupported)
	}

	if len(s.PowerSupplies) > 0 {
		b.blank()
		b.add("%s", f.heading.Render("Power Supplies:"))
		for _, ps := range s.PowerSupplies {
			b.add("  %s: %s", ps.Name, f.status(ps.State, ps.Health))
			if ps.CapacityWatts != nil {
				b.add("    Capacity: %d W", *ps.CapacityWatts)
			}
			b.add("    Output: %s", watts(ps.OutputWatts))
			if ps.InputWatts != nil {
				b.add("    Input: %d W", *ps.InputWatts)
			}
			if ps.EfficiencyPercent != nil {
				b.add("    Efficiency: %s%%", percent(*ps.EfficiencyPercent))
			}
		}
	}
	return b.String(), nil
}

// Monitoring renders an aggregate report.
func (f *TextFormatter) Monitoring(r *monitor.AggregateReport) (string, error) {
	var b lines
	b.add("%s", f.heading.Render(fmt.Sprintf("=== %s Power Monitoring Results ===", duration.Format(r.DurationHours))))
	b.add("Samples: %d (every %s)", r.SampleCount, duration.Format(r.IntervalMinutes/60))
	b.add("Period: %s to %s", r.StartTime.Format(timestampLayout), r.EndTime.Format(timestampLayout))
	if r.Interrupted {
		b.add("%s", f.bad.Render(fmt.Sprintf("Interrupted after %d of %d expected samples", r.SampleCount, r.ExpectedSamples)))
	}
	b.blank()
	b.add("%s %s", f.label.Render("System Average:"), watts(r.SystemAverageWatts))
	b.add("%s %s", f.label.Render("System Min:"), watts(r.SystemMinWatts))
	b.add("%s %s", f.label.Render("System Max:"), watts(r.SystemMaxWatts))
	b.blank()
	b.add("%s", f.heading.Render("Power Supply Averages:"))

	for _, psu := range r.PowerSupplies {
		b.add("  %s: %s", psu.Name, f.status(psu.State, psu.Health))
		if psu.CapacityWatts != nil && *psu.CapacityWatts > 0 {
			b.add("    Capacity: %d W", *psu.CapacityWatts)
		}
		if psu.AverageOutputWatts != nil {
			b.add("    Average Output: %d W", *psu.AverageOutputWatts)
			b.add("    Min/Max Output: %s / %s", bare(psu.MinOutputWatts), watts(psu.MaxOutputWatts))
		}
		if psu.AverageInputWatts != nil {
			b.add("    Average Input: %d W", *psu.AverageInputWatts)
			b.add("    Min/Max Input: %s / %s", bare(psu.MinInputWatts), watts(psu.MaxInputWatts))
		}
		if psu.AverageEfficiencyPercent != nil {
			b.add("    Average Efficiency: %s%%", percent(*psu.AverageEfficiencyPercent))
		}
	}
	return b.String(), nil
}

// Multi renders the summary of a multi-target run.
func (f *TextFormatter) Multi(r *parallel.Result) (string, error) {
	var b lines
	b.add("%s", f.heading.Render("=== Multi-Server Power Monitoring ==="))
	b.blank()
	b.add("Total: %d | Success: %s | Failed: %s",
		r.Total, f.good.Render(strconv.Itoa(r.Passed)), f.failedCount(r.Failed))
	b.blank()

	if failed := r.FailedOutcomes(); len(failed) > 0 {
		b.add("%s", f.bad.Render("Failed Servers:"))
		for _, o := range failed {
			b.add("  %s (%s): %s", o.Name, o.Address, o.Error)
		}
		b.blank()
	}

	for _, o := range r.Successful() {
		b.add("%s", f.heading.Render(fmt.Sprintf("--- %s (%s) ---", o.Name, o.Address)))
		switch {
		case o.Report != nil:
			rep := o.Report
			b.add("  Duration: %s (%d samples)", duration.Format(rep.DurationHours), rep.SampleCount)
			b.add("  System Average: %s", watts(rep.SystemAverageWatts))
			b.add("  System Range: %s - %s", bare(rep.SystemMinWatts), watts(rep.SystemMaxWatts))
			b.add("  Power Supplies:")
			for _, psu := range rep.PowerSupplies {
				b.add("    %s: %s", psu.Name, f.status(psu.State, psu.Health))
				if psu.AverageOutputWatts != nil {
					b.add("      Avg Output: %d W", *psu.AverageOutputWatts)
				}
			}
		case o.Reading != nil:
			s := o.Reading
			b.add("  Power: %s", watts(s.PrimaryWatts()))
			if s.Redundancy != nil {
				b.add("  Redundancy: %s", s.Redundancy.Mode)
			}
			b.add("  Power Supplies:")
			for _, psu := range s.PowerSupplies {
				b.add("    %s: %s", psu.Name, f.status(psu.State, psu.Health))
				if psu.OutputWatts != nil {
					b.add("      Output: %d W", *psu.OutputWatts)
				}
			}
		}
		b.blank()
	}
	return b.String(), nil
}

func (f *TextFormatter) optionalWatts(b *lines, name string, v *int) {
	if v != nil && *v != 0 {
		b.add("%s %d W", f.label.Render(name), *v)
	}
}

func (f *TextFormatter) status(state, health string) string {
	if state == "" {
		return "Unknown"
	}
	return state + " - " + f.health(health)
}

func (f *TextFormatter) health(h string) string {
	switch strings.ToLower(h) {
	case "ok":
		return f.good.Render(h)
	case "warning", "critical":
		return f.bad.Render(h)
	default:
		return h
	}
}

func (f *TextFormatter) failedCount(n int) string {
	if n == 0 {
		return strconv.Itoa(n)
	}
	return f.bad.Render(strconv.Itoa(n))
}

// lines accumulates report lines.
type lines struct {
	out []string
}

func (l *lines) add(format string, args ...interface{}) {
	l.out = append(l.out, fmt.Sprintf(format, args...))
}

func (l *lines) blank() {
	l.out = append(l.out, "")
}

func (l *lines) String() string {
	return strings.TrimRight(strings.Join(l.out, "\n"), "\n")
}

func watts(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v) + " W"
}

func bare(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
