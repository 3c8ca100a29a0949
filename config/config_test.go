package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.MaxConn != 10000 {
		t.Errorf("MaxConn = %d, want 10000", cfg.MaxConn)
	}
	if cfg.CallTimeout != 15*time.Second {
		t.Errorf("CallTimeout = %v, want 15s", cfg.CallTimeout)
	}
	if cfg.GcSweepInterval != 30*time.Second {
		t.Errorf("GcSweepInterval = %v, want 30s", cfg.GcSweepInterval)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"Host":"10.0.0.5","Port":9001,"MaxConn":5}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "10.0.0.5" || cfg.Port != 9001 {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.MaxConn != 5 {
		t.Fatalf("MaxConn = %d, want 5 (override)", cfg.MaxConn)
	}
	// Fields the file didn't mention should keep Default's values.
	if cfg.CallTimeout != 15*time.Second {
		t.Fatalf("CallTimeout = %v, want the default to survive partial overrides", cfg.CallTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}
