// Package duration parses and formats the human-friendly duration strings
// accepted by --monitor and --sample-interval ("5m", "3h", "1d", "24", "0.5h").
// Hours are the canonical unit.
package duration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/idrac-power/internal/errors"
)

var durationPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]*)?|\.[0-9]+)([smhd])?$`)

// epsilon absorbs float noise such as 5.0/60*60 = 4.999999999999999.
const epsilon = 1e-9

// Parse converts a duration string to hours. The unit is optional and
// defaults to hours.
func Parse(s string) (float64, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	match := durationPattern.FindStringSubmatch(normalized)
	if match == nil {
		return 0, invalid(s, nil)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, invalid(s, err)
	}

	switch match[2] {
	case "s":
		return value / 3600, nil
	case "m":
		return value / 60, nil
	case "d":
		return value * 24, nil
	default:
		return value, nil
	}
}

// ParseDuration is Parse followed by ToDuration.
func ParseDuration(s string) (time.Duration, error) {
	hours, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return ToDuration(hours), nil
}

func invalid(s string, cause error) error {
	return errors.WrapWithCode(cause, errors.ErrDuration,
		fmt.Sprintf("Invalid duration format: '%s'", s),
		"Use formats like: 5m, 3h, 1d, 24, 0.5h")
}

// Format renders hours using the coarsest unit that gives a clean value:
// whole days, then hours, then minutes, then seconds. Non-whole values get
// one decimal place.
func Format(hours float64) string {
	if hours >= 24 && isWhole(hours/24) {
		return fmt.Sprintf("%dd", int64(math.Round(hours/24)))
	}

	if hours >= 1-epsilon {
		return withUnit(hours, "h")
	}

	minutes := hours * 60
	if minutes >= 1-epsilon {
		return withUnit(minutes, "m")
	}

	return withUnit(hours*3600, "s")
}

// FormatDuration is Format for a time.Duration.
func FormatDuration(d time.Duration) string {
	return Format(FromDuration(d))
}

func withUnit(v float64, unit string) string {
	if isWhole(v) {
		return fmt.Sprintf("%d%s", int64(math.Round(v)), unit)
	}
	return fmt.Sprintf("%.1f%s", v, unit)
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < epsilon*math.Max(1, math.Abs(v))
}

// ToDuration converts hours to a time.Duration, rounded to the nearest
// millisecond so that "5m" becomes exactly 5 minutes.
func ToDuration(hours float64) time.Duration {
	d := time.Duration(hours * float64(time.Hour))
	return d.Round(time.Millisecond)
}

// FromDuration converts a time.Duration to hours.
func FromDuration(d time.Duration) float64 {
	return d.Hours()
}
