package report

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/power"
)

// JSONFormatter renders reports as indented JSON.
type JSONFormatter struct{}

func (JSONFormatter) Name() string      { return "json" }
func (JSONFormatter) Extension() string { return ".json" }

func (f JSONFormatter) Reading(s *power.Snapshot) (string, error) { return f.encode(s) }
func (f JSONFormatter) Monitoring(r *monitor.AggregateReport) (string, error) {
	return f.encode(r)
}
func (f JSONFormatter) Multi(r *parallel.Result) (string, error) { return f.encode(r) }

func (JSONFormatter) encode(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode report as JSON", "")
	}
	return string(data), nil
}

// YAMLFormatter renders reports as YAML.
type YAMLFormatter struct{}

func (YAMLFormatter) Name() string      { return "yaml" }
func (YAMLFormatter) Extension() string { return ".yaml" }

func (f YAMLFormatter) Reading(s *power.Snapshot) (string, error) { return f.encode(s) }
func (f YAMLFormatter) Monitoring(r *monitor.AggregateReport) (string, error) {
	return f.encode(r)
}
func (f YAMLFormatter) Multi(r *parallel.Result) (string, error) { return f.encode(r) }

func (YAMLFormatter) encode(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode report as YAML", "")
	}
	if err := enc.Close(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Couldn't encode report as YAML", "")
	}
	return buf.String(), nil
}
