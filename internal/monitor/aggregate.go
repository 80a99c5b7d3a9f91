package monitor

import (
	"math"

	"github.com/rileyhilliard/idrac-power/internal/power"
)

// intStat accumulates min/max/mean over the readings that were present.
type intStat struct {
	n        int
	sum      int64
	min, max int
}

func (s *intStat) add(v *int) {
	if v == nil {
		return
	}
	if s.n == 0 || *v < s.min {
		s.min = *v
	}
	if s.n == 0 || *v > s.max {
		s.max = *v
	}
	s.sum += int64(*v)
	s.n++
}

// avg truncates toward zero, matching int() of the mean.
func (s *intStat) avg() *int {
	if s.n == 0 {
		return nil
	}
	return power.Int(int(float64(s.sum) / float64(s.n)))
}

func (s *intStat) lo() *int {
	if s.n == 0 {
		return nil
	}
	return power.Int(s.min)
}

func (s *intStat) hi() *int {
	if s.n == 0 {
		return nil
	}
	return power.Int(s.max)
}

type floatStat struct {
	n   int
	sum float64
}

func (s *floatStat) add(v *float64) {
	if v == nil {
		return
	}
	s.sum += *v
	s.n++
}

// avg1 returns the mean rounded to one decimal place.
func (s *floatStat) avg1() *float64 {
	if s.n == 0 {
		return nil
	}
	return power.Float(math.Round(s.sum/float64(s.n)*10) / 10)
}

// deviceGroup holds the numeric accumulators and the categorical fields for
// one device name. Categorical fields are overwritten by every sample that
// lists the device, so they always reflect the most recent one.
type deviceGroup struct {
	name string

	latest power.PowerSupply

	output     intStat
	input      intStat
	efficiency floatStat
}

// Aggregate reduces samples into an AggregateReport. Samples are expected in
// collection order. Run metadata (duration, interval, expected count) is left
// zero; Series.Report fills it in.
func Aggregate(samples []Sample) (*AggregateReport, error) {
	if len(samples) == 0 {
		return nil, noSamplesError()
	}

	var system intStat
	var order []string
	groups := make(map[string]*deviceGroup)

	for _, sample := range samples {
		system.add(sample.SystemWatts)

		for _, dev := range sample.Devices {
			g, ok := groups[dev.Name]
			if !ok {
				g = &deviceGroup{name: dev.Name}
				groups[dev.Name] = g
				order = append(order, dev.Name)
			}
			g.latest = dev
			g.output.add(dev.OutputWatts)
			g.input.add(dev.InputWatts)
			g.efficiency.add(dev.EfficiencyPercent)
		}
	}

	report := &AggregateReport{
		SampleCount:        len(samples),
		StartTime:          samples[0].Timestamp,
		EndTime:            samples[len(samples)-1].Timestamp,
		SystemAverageWatts: system.avg(),
		SystemMinWatts:     system.lo(),
		SystemMaxWatts:     system.hi(),
		PowerSupplies:      make([]DeviceAggregate, 0, len(order)),
	}

	for _, name := range order {
		g := groups[name]
		report.PowerSupplies = append(report.PowerSupplies, DeviceAggregate{
			Name:                     g.name,
			State:                    g.latest.State,
			Health:                   g.latest.Health,
			CapacityWatts:            g.latest.CapacityWatts,
			AverageOutputWatts:       g.output.avg(),
			MinOutputWatts:           g.output.lo(),
			MaxOutputWatts:           g.output.hi(),
			AverageInputWatts:        g.input.avg(),
			MinInputWatts:            g.input.lo(),
			MaxInputWatts:            g.input.hi(),
			AverageEfficiencyPercent: g.efficiency.avg1(),
		})
	}

	return report, nil
}
