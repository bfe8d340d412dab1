package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
env: "prod"
storage_path: "/var/lib/users.db"
tcp_server:
  address: "localhost:9000"
  capacity: 4
  buffer_size: 512
  list_mode: "locked"
  list_terminator: "END"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Env != "prod" || cfg.StoragePath != "/var/lib/users.db" {
		t.Fatalf("unexpected top-level config %+v", cfg)
	}
	want := TCPServer{
		Addr:           "localhost:9000",
		Capacity:       4,
		BufferSize:     512,
		ListMode:       ListModeLocked,
		ListTerminator: "END",
	}
	if cfg.TCPServer != want {
		t.Fatalf("TCPServer = %+v, want %+v", cfg.TCPServer, want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "env: \"dev\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.StoragePath != "users.db" {
		t.Errorf("StoragePath = %q", cfg.StoragePath)
	}
	if cfg.Addr != ":80" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Capacity != 10 {
		t.Errorf("Capacity = %d", cfg.Capacity)
	}
	if cfg.BufferSize != 1024 {
		t.Errorf("BufferSize = %d", cfg.BufferSize)
	}
	if cfg.ListMode != ListModeSnapshot {
		t.Errorf("ListMode = %q", cfg.ListMode)
	}
	if cfg.ListTerminator != "" {
		t.Errorf("ListTerminator = %q", cfg.ListTerminator)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
tcp_server:
  capacity: 5
`)
	t.Setenv("TCP_SERVER_CAPACITY", "3")
	t.Setenv("TCP_SERVER_ADDR", "127.0.0.1:7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Capacity != 3 || cfg.Addr != "127.0.0.1:7000" {
		t.Fatalf("env not applied: %+v", cfg.TCPServer)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("STORAGE_PATH", "/tmp/env-users.db")
	t.Setenv("TCP_SERVER_LIST_MODE", ListModeLocked)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoragePath != "/tmp/env-users.db" || cfg.ListMode != ListModeLocked {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Capacity != 10 {
		t.Fatalf("default capacity not applied: %d", cfg.Capacity)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative capacity", body: "tcp_server:\n  capacity: -1\n"},
		{name: "tiny buffer", body: "tcp_server:\n  buffer_size: 4\n"},
		{name: "unknown list mode", body: "tcp_server:\n  list_mode: \"sideways\"\n"},
		{name: "unknown env", body: "env: \"qa\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
