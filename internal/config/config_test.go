package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "store:\n  path: /tmp/galois-test\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Snapshot.IntervalEvents != 10000 {
		t.Fatalf("snapshot.interval_events = %d, want default 10000", cfg.Snapshot.IntervalEvents)
	}
	if cfg.Ingress.ListenAddr != ":8761" {
		t.Fatalf("ingress.listen_addr = %q, want default :8761", cfg.Ingress.ListenAddr)
	}
	if !cfg.Ingress.RequireSigs {
		t.Fatalf("ingress.require_sigs should default to true")
	}
}

func TestLoadEnvOverridesStorePath(t *testing.T) {
	path := writeConfig(t, "store:\n  path: /tmp/galois-test\n")
	t.Setenv("GALOIS_STORE_PATH", "/tmp/overridden")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/tmp/overridden" {
		t.Fatalf("store.path = %q, want env override", cfg.Store.Path)
	}
}

func TestValidateRejectsBadSymbolSeed(t *testing.T) {
	cfg := &Config{
		Store:   StoreConfig{Path: "x"},
		Ingress: IngressConfig{ListenAddr: ":1"},
		Symbols: []SymbolSeed{{Base: 100, Quote: 100, BaseScale: 4, QuoteScale: 4}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected rejection for base == quote")
	}
}

func TestValidateRejectsOutOfRangeScale(t *testing.T) {
	cfg := &Config{
		Store:   StoreConfig{Path: "x"},
		Ingress: IngressConfig{ListenAddr: ":1"},
		Symbols: []SymbolSeed{{Base: 101, Quote: 100, BaseScale: 19, QuoteScale: 4}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected rejection for out-of-range scale")
	}
}
