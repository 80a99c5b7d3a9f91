// Package power defines the telemetry records read from a management
// controller. Numeric readings are pointers: nil means the controller did not
// report the value, which is distinct from a reported zero.
package power

// Snapshot is a single power reading for one chassis.
type Snapshot struct {
	ChassisID          string        `json:"chassis_id" yaml:"chassis_id"`
	CurrentWatts       *int          `json:"current_watts" yaml:"current_watts"`
	AverageWatts       *int          `json:"average_watts" yaml:"average_watts"`
	MinWatts           *int          `json:"min_watts" yaml:"min_watts"`
	MaxConsumedWatts   *int          `json:"max_consumed_watts" yaml:"max_consumed_watts"`
	CapacityWatts      *int          `json:"max_watts" yaml:"max_watts"`
	PowerLimitWatts    *int          `json:"power_limit" yaml:"power_limit"`
	AverageIntervalMin *int          `json:"average_interval_min" yaml:"average_interval_min"`
	PowerSupplies      []PowerSupply `json:"power_supplies" yaml:"power_supplies"`
	Redundancy         *Redundancy   `json:"redundancy,omitempty" yaml:"redundancy,omitempty"`
}

// PowerSupply is one PSU as reported in a Snapshot.
type PowerSupply struct {
	Name              string   `json:"name" yaml:"name"`
	State             string   `json:"state" yaml:"state"`
	Health            string   `json:"health" yaml:"health"`
	CapacityWatts     *int     `json:"capacity_watts" yaml:"capacity_watts"`
	LastOutputWatts   *int     `json:"last_power_output" yaml:"last_power_output"`
	InputWatts        *int     `json:"input_watts" yaml:"input_watts"`
	OutputWatts       *int     `json:"output_watts" yaml:"output_watts"`
	EfficiencyPercent *float64 `json:"efficiency_percent" yaml:"efficiency_percent"`
	LineInputVoltage  *float64 `json:"line_input_voltage" yaml:"line_input_voltage"`
}

// Redundancy describes the PSU redundancy group.
type Redundancy struct {
	Mode         string `json:"mode" yaml:"mode"`
	Status       string `json:"status" yaml:"status"`
	MinNeeded    int    `json:"min_needed" yaml:"min_needed"`
	MaxSupported int    `json:"max_supported" yaml:"max_supported"`
}

// PrimaryWatts returns the value to size against: the controller's rolling
// average when present, else the instantaneous reading.
func (s *Snapshot) PrimaryWatts() *int {
	if s == nil {
		return nil
	}
	if s.AverageWatts != nil {
		return s.AverageWatts
	}
	return s.CurrentWatts
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
