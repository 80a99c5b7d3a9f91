package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rileyhilliard/idrac-power/internal/duration"
	"github.com/rileyhilliard/idrac-power/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their flag names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return "--" + strings.ReplaceAll(name, "_", "-")
	})
	return v
}

// Validate checks ranges and the target selection. Single-target runs need
// host, username and password; a servers file replaces all three.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't validate settings", "")
		}
		fe := verrs[0]
		return errors.New(errors.ErrConfig, fieldMessage(fe), "Check the flag, its IDRAC_* variable and your config file.")
	}

	if !cfg.MultiTarget() && (cfg.Host == "" || cfg.Username == "" || cfg.Password == "") {
		return errors.New(errors.ErrConfig,
			"Either --servers-file or all of --host, --username, and --password are required",
			"Set them as flags, IDRAC_HOST/IDRAC_USERNAME/IDRAC_PASSWORD, or in your config file.")
	}

	if _, _, _, err := cfg.MonitorWindow(); err != nil {
		return err
	}
	return nil
}

// MonitorWindow parses the monitoring duration and sample interval. ok is
// false when monitoring is off.
func (c *Config) MonitorWindow() (d, interval time.Duration, ok bool, err error) {
	if strings.TrimSpace(c.Monitor) == "" {
		return 0, 0, false, nil
	}

	d, err = duration.ParseDuration(c.Monitor)
	if err != nil {
		return 0, 0, false, err
	}
	interval, err = duration.ParseDuration(c.SampleInterval)
	if err != nil {
		return 0, 0, false, err
	}
	if d <= 0 || interval <= 0 {
		return 0, 0, false, errors.New(errors.ErrDuration,
			"Monitoring duration and sample interval must be positive",
			"Use values like --monitor 24h --sample-interval 5m")
	}
	return d, interval, true, nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		if fe.Kind() == reflect.Int && strings.Contains(field, "port") {
			return fmt.Sprintf("%s must be between 1 and 65535", field)
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s can't be negative", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
