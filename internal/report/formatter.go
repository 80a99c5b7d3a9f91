// Package report renders power readings, monitoring reports and
// multi-target results as text, JSON or YAML, and writes them to files.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/monitor"
	"github.com/rileyhilliard/idrac-power/internal/parallel"
	"github.com/rileyhilliard/idrac-power/internal/power"
)

// Formatter renders the three report shapes in one output format.
type Formatter interface {
	// Name returns the format identifier used by --format.
	Name() string

	// Extension is appended to --output paths that lack a known one.
	Extension() string

	Reading(s *power.Snapshot) (string, error)
	Monitoring(r *monitor.AggregateReport) (string, error)
	Multi(r *parallel.Result) (string, error)
}

// Registry holds available formatters by name.
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry creates a registry with the text, JSON and YAML formatters.
// The text formatter uses the given styles.
func NewRegistry(text *TextFormatter) *Registry {
	r := &Registry{formatters: make(map[string]Formatter)}
	r.Register(text)
	r.Register(JSONFormatter{})
	r.Register(YAMLFormatter{})
	return r
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) {
	r.formatters[f.Name()] = f
}

// Get returns the formatter for name, case-insensitively.
func (r *Registry) Get(name string) (Formatter, error) {
	if f, ok := r.formatters[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown output format %q", name),
		fmt.Sprintf("Use one of: %s", strings.Join(r.Names(), ", ")))
}

// Names returns all registered formatter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// knownExtensions are left alone by OutputPath.
var knownExtensions = []string{".txt", ".json", ".yaml", ".yml"}

// OutputPath appends the formatter's extension to path unless path already
// ends in a report extension.
func OutputPath(path string, f Formatter) string {
	lower := strings.ToLower(path)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return path
		}
	}
	return path + f.Extension()
}

// WriteFile writes content to path, adding a trailing newline.
func WriteFile(path, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't write report to %s", path),
			"Check the directory exists and is writable")
	}
	return nil
}
