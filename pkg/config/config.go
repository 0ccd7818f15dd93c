package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/common/validation"
	"github.com/vnykmshr/pacegate/pkg/metrics"
	"github.com/vnykmshr/pacegate/pkg/ratelimit/gate"
)

// File is the top-level shape of a gate configuration file.
type File struct {
	Metrics MetricsConfig         `yaml:"metrics"`
	Gates   map[string]GateConfig `yaml:"gates"`
}

// MetricsConfig controls instrumentation of the gates built from a File.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// GateConfig describes one named gate.
type GateConfig struct {
	Interval       Interval `yaml:"interval"`
	Concurrency    int      `yaml:"concurrency"`
	ImmediateFirst bool     `yaml:"immediate_first"`
}

// Interval is a gate interval written either as a duration string ("500ms")
// or as a number of seconds (0.5).
type Interval time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (i *Interval) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: interval must be a duration or a number of seconds", node.Line)
	}

	var raw any
	switch node.Tag {
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}
		raw = n
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		raw = f
	default:
		raw = node.Value
	}

	d, err := gate.ParseInterval(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*i = Interval(d)
	return nil
}

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

// Load reads a YAML file, expands ${VAR} placeholders from the environment
// and validates the result.
func Load(path string, logger *zap.Logger) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b, path, logger)
}

// Parse is Load for configuration already in memory. source names the input
// in log messages and errors.
func Parse(data []byte, source string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	expanded, err := ExpandEnv(data, source, logger)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(expanded, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &f, nil
}

// Validate checks every gate and fills in defaults. Concurrency defaults to 1.
func (f *File) Validate() error {
	for _, name := range f.names() {
		gc := f.Gates[name]
		if gc.Concurrency == 0 {
			gc.Concurrency = 1
		}
		if err := validation.ValidatePositive("config", "gates."+name+".concurrency", gc.Concurrency); err != nil {
			return err
		}
		f.Gates[name] = gc
	}
	return nil
}

// BuildGates constructs the configured gates keyed by name. When metrics are
// enabled the gates are instrumented on the default Prometheus registerer.
func (f *File) BuildGates(logger *zap.Logger) (map[string]gate.Gate, error) {
	return f.BuildGatesWith(logger, nil)
}

// BuildGatesWith is BuildGates with an explicit registerer; nil means
// prometheus.DefaultRegisterer.
func (f *File) BuildGatesWith(logger *zap.Logger, reg prometheus.Registerer) (map[string]gate.Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var registry *metrics.Registry
	if f.Metrics.Enabled {
		registry = f.registry(reg)
	}

	gates := make(map[string]gate.Gate, len(f.Gates))
	for _, name := range f.names() {
		gc := f.Gates[name]
		g, err := gate.NewWithConfigSafe(gate.Config{
			Interval:       gc.Interval.Duration(),
			Concurrency:    gc.Concurrency,
			ImmediateFirst: gc.ImmediateFirst,
			Logger:         logger,
			Name:           name,
		})
		if err != nil {
			return nil, gferrors.NewOperationError("config", "BuildGates", err).WithContext("gate " + name)
		}
		if registry != nil {
			g = gate.Instrument(g, registry)
		}
		gates[name] = g

		logger.Info("gate configured",
			zap.String("gate", name),
			zap.Duration("interval", gc.Interval.Duration()),
			zap.Int("concurrency", gc.Concurrency),
			zap.Bool("metrics", registry != nil))
	}
	return gates, nil
}

func (f *File) registry(reg prometheus.Registerer) *metrics.Registry {
	ns := f.Metrics.Namespace
	if reg == nil && (ns == "" || ns == metrics.DefaultNamespace) {
		return metrics.Default()
	}
	return metrics.NewRegistryWithConfig(metrics.Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: ns,
	})
}

func (f *File) names() []string {
	names := make([]string, 0, len(f.Gates))
	for name := range f.Gates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
