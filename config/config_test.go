package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Auth.DefaultUser != "local-user" {
		t.Errorf("default user = %q, want local-user", cfg.Auth.DefaultUser)
	}
	if cfg.Database.Path == "" {
		t.Error("database path default must not be empty")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECONCILE_SERVER_ADDR", ":9999")
	t.Setenv("RECONCILE_AUTH_DEFAULT_USER", "alice")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want env override :9999", cfg.Server.Addr)
	}
	if cfg.Auth.DefaultUser != "alice" {
		t.Errorf("default user = %q, want alice", cfg.Auth.DefaultUser)
	}
}
