package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Bench.Iterations != DefaultIterations {
		t.Errorf("Bench.Iterations = %d, want %d", cfg.Bench.Iterations, DefaultIterations)
	}
	if len(cfg.Bench.Widths) == 0 {
		t.Error("Bench.Widths is empty")
	}
	if cfg.Serve.Address != DefaultAddress {
		t.Errorf("Serve.Address = %q, want %q", cfg.Serve.Address, DefaultAddress)
	}
	if cfg.Serve.Interval != DefaultInterval {
		t.Errorf("Serve.Interval = %q, want %q", cfg.Serve.Interval, DefaultInterval)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bench.Iterations != DefaultIterations {
		t.Errorf("Bench.Iterations = %d, want %d", cfg.Bench.Iterations, DefaultIterations)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "name": "demo",
  "bench": {
    "widths": [5],
    "iterations": 10
  },
  "serve": {
    "address": "0.0.0.0:9000",
    "metrics": true
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Name != "demo" {
		t.Errorf("Name = %q, want %q", cfg.Name, "demo")
	}
	if len(cfg.Bench.Widths) != 1 || cfg.Bench.Widths[0] != 5 {
		t.Errorf("Bench.Widths = %v, want [5]", cfg.Bench.Widths)
	}
	if cfg.Bench.Iterations != 10 {
		t.Errorf("Bench.Iterations = %d, want 10", cfg.Bench.Iterations)
	}
	if cfg.Serve.Address != "0.0.0.0:9000" {
		t.Errorf("Serve.Address = %q, want %q", cfg.Serve.Address, "0.0.0.0:9000")
	}
	if !cfg.Serve.Metrics {
		t.Error("Serve.Metrics = false, want true")
	}

	// Unset fields keep their defaults.
	if len(cfg.Bench.Heights) == 0 {
		t.Error("Bench.Heights is empty, want defaults")
	}
	if cfg.Serve.Interval != DefaultInterval {
		t.Errorf("Serve.Interval = %q, want %q", cfg.Serve.Interval, DefaultInterval)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("error = %q, want parse error", err)
	}
}

func TestTickInterval(t *testing.T) {
	sc := ServeConfig{Interval: "250ms"}
	if got := sc.TickInterval(); got != 250*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 250ms", got)
	}

	sc = ServeConfig{Interval: "bogus"}
	if got := sc.TickInterval(); got != time.Second {
		t.Errorf("TickInterval() = %v, want 1s fallback", got)
	}

	sc = ServeConfig{Interval: "-5s"}
	if got := sc.TickInterval(); got != time.Second {
		t.Errorf("TickInterval() = %v, want 1s fallback", got)
	}
}
