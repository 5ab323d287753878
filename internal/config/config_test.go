package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Port != defaultProxyPort {
		t.Errorf("Proxy.Port = %d, want %d", cfg.Proxy.Port, defaultProxyPort)
	}
	if cfg.Web.Port != defaultWebPort {
		t.Errorf("Web.Port = %d, want %d", cfg.Web.Port, defaultWebPort)
	}
	if cfg.Storage.MaxBodySize != defaultMaxBody {
		t.Errorf("Storage.MaxBodySize = %d, want %d", cfg.Storage.MaxBodySize, defaultMaxBody)
	}
}

func TestLoad_ParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
proxy:
  host: 0.0.0.0
  port: 9090
web:
  port: 9091
  headless: true
storage:
  dataDir: /tmp/custom-data
  maxBodySize: 1024
streaming:
  idleTimeoutMs: 5000
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Host != "0.0.0.0" || cfg.Proxy.Port != 9090 {
		t.Errorf("Proxy = %+v", cfg.Proxy)
	}
	if cfg.Web.Port != 9091 || !cfg.Web.Headless {
		t.Errorf("Web = %+v", cfg.Web)
	}
	if cfg.Storage.DataDir != "/tmp/custom-data" || cfg.Storage.MaxBodySize != 1024 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Streaming.IdleTimeoutMs != 5000 {
		t.Errorf("Streaming = %+v", cfg.Streaming)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_PartialOverrideRetainsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("proxy:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Proxy.Port != 9090 {
		t.Errorf("Proxy.Port = %d, want 9090", cfg.Proxy.Port)
	}
	if cfg.Proxy.Host != "127.0.0.1" {
		t.Errorf("Proxy.Host = %q, want default retained", cfg.Proxy.Host)
	}
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("proxy:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envProxyPort, "7777")
	t.Setenv(envDataDir, "/tmp/env-data")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.Port != 7777 {
		t.Errorf("Proxy.Port = %d, want env override 7777", cfg.Proxy.Port)
	}
	if cfg.Storage.DataDir != "/tmp/env-data" {
		t.Errorf("Storage.DataDir = %q, want env override", cfg.Storage.DataDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: *applyDefaults(), wantErr: false},
		{
			name:    "empty host",
			cfg:     Config{Proxy: ProxyConfig{Host: "", Port: 8080}, Storage: StorageConfig{DataDir: "/x", MaxBodySize: 1}},
			wantErr: true,
		},
		{
			name:    "proxy port 0",
			cfg:     Config{Proxy: ProxyConfig{Host: "127.0.0.1", Port: 0}, Storage: StorageConfig{DataDir: "/x", MaxBodySize: 1}},
			wantErr: true,
		},
		{
			name:    "web port out of range",
			cfg:     Config{Proxy: ProxyConfig{Host: "127.0.0.1", Port: 8080}, Web: WebConfig{Port: 70000}, Storage: StorageConfig{DataDir: "/x", MaxBodySize: 1}},
			wantErr: true,
		},
		{
			name:    "empty data dir",
			cfg:     Config{Proxy: ProxyConfig{Host: "127.0.0.1", Port: 8080}, Storage: StorageConfig{DataDir: "", MaxBodySize: 1}},
			wantErr: true,
		},
		{
			name:    "non-positive max body",
			cfg:     Config{Proxy: ProxyConfig{Host: "127.0.0.1", Port: 8080}, Storage: StorageConfig{DataDir: "/x", MaxBodySize: 0}},
			wantErr: true,
		},
		{
			name:    "negative idle timeout",
			cfg:     Config{Proxy: ProxyConfig{Host: "127.0.0.1", Port: 8080}, Storage: StorageConfig{DataDir: "/x", MaxBodySize: 1}, Streaming: StreamingConfig{IdleTimeoutMs: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&tt.cfg)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWriteDefault_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}
	if cfg.Proxy.Port != defaultProxyPort {
		t.Errorf("roundtrip Proxy.Port = %d, want %d", cfg.Proxy.Port, defaultProxyPort)
	}
}

func TestIntFromEnv_RejectsNonDigits(t *testing.T) {
	t.Setenv("APTEST_NOT_A_NUMBER", "abc")
	if _, ok := intFromEnv("APTEST_NOT_A_NUMBER"); ok {
		t.Error("intFromEnv() ok = true for non-digit value")
	}
}
