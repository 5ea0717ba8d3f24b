package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/forcegraph/pkg/physics"
	"github.com/spf13/pflag"
)

func noEnv() []string { return nil }

func TestDefaults(t *testing.T) {
	cfg, err := load(nil, "", false, noEnv)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Port != 8080 || cfg.FPS != 60 || cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Physics != physics.DefaultParams() {
		t.Errorf("Expected default physics, got %+v", cfg.Physics)
	}
	if cfg.Eades != physics.DefaultEadesParams() {
		t.Errorf("Expected default eades params, got %+v", cfg.Eades)
	}
	if len(cfg.Navigable) != 1 || cfg.Navigable[0] != "file" {
		t.Errorf("Expected navigable [file], got %v", cfg.Navigable)
	}
	if !cfg.CloseOnNavigate {
		t.Error("Expected close_on_navigate by default")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcegraph.toml")
	content := `
fps = 30
simulator = "eades"

[physics]
damping = 0.8
rest_length = 60

[feed]
poll_interval = "5s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(nil, path, true, noEnv)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.FPS != 30 || cfg.Simulator != physics.KindEades {
		t.Errorf("Expected file values, got fps=%d simulator=%q", cfg.FPS, cfg.Simulator)
	}
	if cfg.Physics.Damping != 0.8 || cfg.Physics.RestLength != 60 {
		t.Errorf("Expected nested physics overrides, got %+v", cfg.Physics)
	}
	if cfg.Physics.Repulsion != 500 {
		t.Errorf("Expected untouched keys to keep defaults, got repulsion %v", cfg.Physics.Repulsion)
	}
	if cfg.Feed.PollInterval != 5*time.Second {
		t.Errorf("Expected 5s poll interval, got %v", cfg.Feed.PollInterval)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forcegraph.toml")
	if err := os.WriteFile(path, []byte("port = 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	environ := func() []string {
		return []string{
			"FORCEGRAPH_PORT=9100",
			"FORCEGRAPH_PHYSICS__GRAVITY=0.02",
			"FORCEGRAPH_NAVIGABLE=file,external",
			"HOME=/root",
		}
	}
	cfg, err := load(nil, path, true, environ)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Port != 9100 {
		t.Errorf("Expected env port 9100, got %d", cfg.Port)
	}
	if cfg.Physics.Gravity != 0.02 {
		t.Errorf("Expected env gravity 0.02, got %v", cfg.Physics.Gravity)
	}
	if strings.Join(cfg.Navigable, ",") != "file,external" {
		t.Errorf("Expected navigable from env, got %v", cfg.Navigable)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.Int("port", 8080, "")
	f.Float64("physics.damping", 0.9, "")
	f.Int("fps", 60, "")
	if err := f.Parse([]string{"--port=7000", "--physics.damping=0.5"}); err != nil {
		t.Fatal(err)
	}

	environ := func() []string { return []string{"FORCEGRAPH_PORT=9100", "FORCEGRAPH_FPS=24"} }
	cfg, err := load(f, "", false, environ)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Port != 7000 {
		t.Errorf("Expected flag port 7000, got %d", cfg.Port)
	}
	if cfg.Physics.Damping != 0.5 {
		t.Errorf("Expected flag damping 0.5, got %v", cfg.Physics.Damping)
	}
	// Unchanged flags do not mask lower layers
	if cfg.FPS != 24 {
		t.Errorf("Expected env fps 24, got %d", cfg.FPS)
	}
}

func TestMissingExplicitFile(t *testing.T) {
	if _, err := load(nil, filepath.Join(t.TempDir(), "absent.toml"), true, noEnv); err == nil {
		t.Error("Expected error for missing named config file")
	}
	if _, err := load(nil, filepath.Join(t.TempDir(), "absent.toml"), false, noEnv); err != nil {
		t.Errorf("Expected missing default file to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fps", func(c *Config) { c.FPS = 0 }},
		{"surface", func(c *Config) { c.Width = 0 }},
		{"simulator", func(c *Config) { c.Simulator = "verlet" }},
		{"publish_every", func(c *Config) { c.PublishEvery = 0 }},
		{"damping", func(c *Config) { c.Physics.Damping = 1 }},
		{"log_format", func(c *Config) { c.LogFormat = "xml" }},
		{"poll_interval", func(c *Config) { c.Feed.PollInterval = -time.Second }},
		{"hit_tolerance", func(c *Config) { c.HitTolerance = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(nil, "", false, noEnv)
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSplitListKeepsExplicitEmpty(t *testing.T) {
	if got := splitList(nil); got != nil {
		t.Errorf("splitList(nil) = %#v, want nil", got)
	}
	for _, in := range [][]string{{}, {""}, {" , "}} {
		got := splitList(in)
		if got == nil || len(got) != 0 {
			t.Errorf("splitList(%q) = %#v, want an empty non-nil list", in, got)
		}
	}
	if got := splitList([]string{"file, external", "list"}); strings.Join(got, ",") != "file,external,list" {
		t.Errorf("splitList() = %v", got)
	}
}

func TestEnvKey(t *testing.T) {
	if got := EnvKey("FORCEGRAPH_PHYSICS__REST_LENGTH"); got != "physics.rest_length" {
		t.Errorf("EnvKey() = %q", got)
	}
	if got := EnvKey("FORCEGRAPH_CLOSE_ON_NAVIGATE"); got != "close_on_navigate" {
		t.Errorf("EnvKey() = %q", got)
	}
}
