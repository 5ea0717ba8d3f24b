package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/ritzau/forcegraph/pkg/physics"
	"github.com/spf13/pflag"
)

// DefaultFile is read from the working directory when present
const DefaultFile = "forcegraph.toml"

// EnvPrefix namespaces environment overrides. A double underscore nests,
// so FORCEGRAPH_PHYSICS__REST_LENGTH sets physics.rest_length.
const EnvPrefix = "FORCEGRAPH_"

// Config holds all configuration for the application
type Config struct {
	Port            int                 `koanf:"port"`
	Verbosity       string              `koanf:"verbosity"`
	LogFormat       string              `koanf:"log_format"`
	FPS             int                 `koanf:"fps"`
	Width           int                 `koanf:"width"`
	Height          int                 `koanf:"height"`
	Simulator       string              `koanf:"simulator"`
	PublishEvery    int                 `koanf:"publish_every"`
	HighlightFrames int                 `koanf:"highlight_frames"`
	CloseOnNavigate bool                `koanf:"close_on_navigate"`
	HitTolerance    float64             `koanf:"hit_tolerance"`
	Navigable       []string            `koanf:"navigable"`
	Physics         physics.Params      `koanf:"physics"`
	Eades           physics.EadesParams `koanf:"eades"`
	Feed            Feed                `koanf:"feed"`
}

// Feed configures the data sources the host can open
type Feed struct {
	DependenciesURL string        `koanf:"dependencies_url"`
	TraceURL        string        `koanf:"trace_url"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	File            string        `koanf:"file"`
	Root            string        `koanf:"root"`
	Watch           bool          `koanf:"watch"`
}

// defaults returns the nested default map. Nested maps are required because
// koanf does not unflatten dotted keys from a raw provider.
func defaults() map[string]any {
	p := physics.DefaultParams()
	e := physics.DefaultEadesParams()
	return map[string]any{
		"port":              8080,
		"verbosity":         "info",
		"log_format":        "compact",
		"fps":               60,
		"width":             800,
		"height":            600,
		"simulator":         physics.KindIntegrator,
		"publish_every":     2,
		"highlight_frames":  30,
		"close_on_navigate": true,
		"hit_tolerance":     10.0,
		"navigable":         []string{"file"},
		"physics": map[string]any{
			"repulsion":     p.Repulsion,
			"spring":        p.Spring,
			"rest_length":   p.RestLength,
			"gravity":       p.Gravity,
			"damping":       p.Damping,
			"margin":        p.Margin,
			"min_distance2": p.MinDistance2,
		},
		"eades": map[string]any{
			"repulsion": e.Repulsion,
			"rate":      e.Rate,
			"theta":     e.Theta,
		},
		"feed": map[string]any{
			"dependencies_url": "http://localhost:8000/graph/dependencies",
			"trace_url":        "ws://localhost:8000/ws/variable_map",
			"poll_interval":    "0s",
			"file":             "",
			"root":             ".",
			"watch":            true,
		},
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
// A "config" flag, when set, names the file; otherwise forcegraph.toml is
// used if it exists.
func Load(f *pflag.FlagSet) (*Config, error) {
	path := DefaultFile
	explicit := false
	if f != nil {
		if fl := f.Lookup("config"); fl != nil && fl.Value.String() != "" {
			path = fl.Value.String()
			explicit = fl.Changed
		}
	}
	return load(f, path, explicit, nil)
}

func load(f *pflag.FlagSet, path string, explicit bool, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. A missing default file is fine, a missing named file is not.
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	if err := k.Load(envProvider(environ), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Navigable = splitList(cfg.Navigable)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// EnvKey maps FORCEGRAPH_PHYSICS__REST_LENGTH to physics.rest_length
func EnvKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// envProvider reads environment overrides from environ so tests need not
// touch the process environment
func envProvider(environ func() []string) koanf.Provider {
	if environ == nil {
		return env.Provider(EnvPrefix, ".", EnvKey)
	}
	m := make(map[string]any)
	for _, kv := range environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		setNested(m, strings.Split(EnvKey(name), "."), value)
	}
	return makeMapProvider(m)
}

func setNested(m map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// splitList accepts comma separated entries, as environment values arrive.
// An explicitly empty list stays empty and non-nil so it disables navigation
// instead of falling back to the default kinds.
func splitList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks ranges that the loop and host depend on
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in [0, 65535], got %d", c.Port))
	}
	if c.FPS < 1 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps must be in [1, 240], got %d", c.FPS))
	}
	if c.Width < 1 || c.Height < 1 {
		errs = append(errs, fmt.Errorf("surface must be at least 1x1, got %dx%d", c.Width, c.Height))
	}
	if _, err := physics.New(c.Simulator, c.Eades); err != nil {
		errs = append(errs, err)
	}
	if c.PublishEvery < 1 {
		errs = append(errs, fmt.Errorf("publish_every must be positive, got %d", c.PublishEvery))
	}
	if c.HighlightFrames < 0 {
		errs = append(errs, fmt.Errorf("highlight_frames must not be negative, got %d", c.HighlightFrames))
	}
	if c.HitTolerance <= 0 {
		errs = append(errs, fmt.Errorf("hit_tolerance must be positive, got %v", c.HitTolerance))
	}
	if c.Feed.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("feed.poll_interval must not be negative, got %v", c.Feed.PollInterval))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "compact", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be compact or json, got %q", c.LogFormat))
	}
	if err := c.Physics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("physics: %w", err))
	}
	if err := c.Eades.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("eades: %w", err))
	}
	return errors.Join(errs...)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
