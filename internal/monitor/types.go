package monitor

import (
	"context"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/power"
)

// Fetcher performs one metrics request against a connected controller.
type Fetcher interface {
	FetchMetrics(ctx context.Context) (*power.Snapshot, error)
}

// Sample is one timestamped observation taken by the Collector.
type Sample struct {
	Timestamp   time.Time
	SystemWatts *int
	Devices     []power.PowerSupply
}

// State is the monitoring loop lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted   // deadline reached
	StateInterrupted // context cancelled with at least one sample
	StateFailed      // no samples at termination, or invalid parameters
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Series is the in-memory sample series of one monitoring run.
type Series struct {
	Samples     []Sample
	Duration    time.Duration
	Interval    time.Duration
	Expected    int // floor(Duration/Interval), display only
	Interrupted bool
}

// Len returns the number of samples collected.
func (s *Series) Len() int {
	return len(s.Samples)
}

// append adds a sample, nudging its timestamp forward if the clock did not
// advance so that timestamps stay strictly increasing.
func (s *Series) append(sample Sample) {
	if n := len(s.Samples); n > 0 {
		last := s.Samples[n-1].Timestamp
		if !sample.Timestamp.After(last) {
			sample.Timestamp = last.Add(time.Nanosecond)
		}
	}
	s.Samples = append(s.Samples, sample)
}

// Report aggregates the series and attaches the run metadata.
func (s *Series) Report() (*AggregateReport, error) {
	report, err := Aggregate(s.Samples)
	if err != nil {
		return nil, err
	}
	report.DurationHours = s.Duration.Hours()
	report.IntervalMinutes = s.Interval.Minutes()
	report.ExpectedSamples = s.Expected
	report.Interrupted = s.Interrupted
	return report, nil
}

// AggregateReport is the statistical reduction of a Series. Pointer fields
// are nil when no sample carried the underlying value.
type AggregateReport struct {
	DurationHours   float64   `json:"monitoring_duration_hours" yaml:"monitoring_duration_hours"`
	IntervalMinutes float64   `json:"sample_interval_minutes" yaml:"sample_interval_minutes"`
	SampleCount     int       `json:"sample_count" yaml:"sample_count"`
	ExpectedSamples int       `json:"expected_samples" yaml:"expected_samples"`
	Interrupted     bool      `json:"interrupted" yaml:"interrupted"`
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	EndTime         time.Time `json:"end_time" yaml:"end_time"`

	SystemAverageWatts *int `json:"system_average_watts" yaml:"system_average_watts"`
	SystemMinWatts     *int `json:"system_min_watts" yaml:"system_min_watts"`
	SystemMaxWatts     *int `json:"system_max_watts" yaml:"system_max_watts"`

	PowerSupplies []DeviceAggregate `json:"power_supplies" yaml:"power_supplies"`
}

// DeviceAggregate summarises one PSU across the series. State, Health and
// CapacityWatts come from the most recent sample that listed the device.
type DeviceAggregate struct {
	Name          string `json:"name" yaml:"name"`
	State         string `json:"state" yaml:"state"`
	Health        string `json:"health" yaml:"health"`
	CapacityWatts *int   `json:"capacity_watts" yaml:"capacity_watts"`

	AverageOutputWatts *int `json:"average_output_watts,omitempty" yaml:"average_output_watts,omitempty"`
	MinOutputWatts     *int `json:"min_output_watts,omitempty" yaml:"min_output_watts,omitempty"`
	MaxOutputWatts     *int `json:"max_output_watts,omitempty" yaml:"max_output_watts,omitempty"`

	AverageInputWatts *int `json:"average_input_watts,omitempty" yaml:"average_input_watts,omitempty"`
	MinInputWatts     *int `json:"min_input_watts,omitempty" yaml:"min_input_watts,omitempty"`
	MaxInputWatts     *int `json:"max_input_watts,omitempty" yaml:"max_input_watts,omitempty"`

	AverageEfficiencyPercent *float64 `json:"average_efficiency_percent,omitempty" yaml:"average_efficiency_percent,omitempty"`
}

// Progress is emitted after every successful sample.
type Progress struct {
	Sample    Sample
	Count     int
	Expected  int
	Percent   float64
	Elapsed   time.Duration
	Remaining time.Duration
}
