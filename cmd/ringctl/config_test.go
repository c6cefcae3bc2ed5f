package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	cfg, err := loadNodeConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := defaultNodeConfig()
	if cfg.ID != def.ID || cfg.HTTPAddr != def.HTTPAddr || cfg.FabricAddr != def.FabricAddr {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.MaxCycles != nil {
		t.Fatal("max_cycles must default to unset")
	}
}

func TestLoadNodeConfigOverrides(t *testing.T) {
	cfg, err := loadNodeConfig(writeConfig(t, `
id = "ring-b"
http_addr = ":8080"
fabric_addr = ":8090"
state_path = "/var/lib/ringctl/state.toml"
log_level = "debug"
cors_origins = ["http://localhost:3000", " "]
max_cycles = 2
delay = "750ms"

[[peers]]
id = "ring-a"
addr = "10.0.0.1:7090"

[[peers]]
id = "ring-c"
addr = "10.0.0.3:7090"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ID != "ring-b" || cfg.HTTPAddr != ":8080" || cfg.FabricAddr != ":8090" {
		t.Fatalf("addresses: %+v", cfg)
	}
	if cfg.StatePath != "/var/lib/ringctl/state.toml" || cfg.LogLevel != "debug" {
		t.Fatalf("paths: %+v", cfg)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:3000" {
		t.Fatalf("cors origins: %v", cfg.CorsOrigins)
	}
	if cfg.MaxCycles == nil || *cfg.MaxCycles != 2 {
		t.Fatalf("max_cycles: %v", cfg.MaxCycles)
	}
	if cfg.Delay != 750*time.Millisecond {
		t.Fatalf("delay: %v", cfg.Delay)
	}
	if len(cfg.Peers) != 2 || cfg.Peers[0].ID != "ring-a" || cfg.Peers[1].Addr != "10.0.0.3:7090" {
		t.Fatalf("peers: %+v", cfg.Peers)
	}
}

func TestLoadNodeConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty id", "id = \"  \"\n"},
		{"negative max_cycles", "max_cycles = -1\n"},
		{"bad delay", "delay = \"whenever\"\n"},
		{"negative delay", "delay = \"-1s\"\n"},
		{"peer without addr", "[[peers]]\nid = \"ring-a\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadNodeConfig(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
