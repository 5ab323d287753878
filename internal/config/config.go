// Package config handles loading, validating, and writing the AgentProbe
// configuration from ~/.agentprobe/config.yaml.
//
// The config defines:
//   - Proxy bind address (host:port) for the intercepting proxy
//   - Web bind address (host:port) for the HTTP/WS API and dashboard
//   - Data directory setting (storage.dataDir); the CLI opens its
//     database under its --data-dir flag, not under this setting
//   - Body capture size cap
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level AgentProbe configuration.
type Config struct {
	Proxy     ProxyConfig     `yaml:"proxy"`
	Web       WebConfig       `yaml:"web"`
	Storage   StorageConfig   `yaml:"storage"`
	Streaming StreamingConfig `yaml:"streaming"`
}

// ProxyConfig defines where the intercepting proxy listens.
// Default: 127.0.0.1:8080 (loopback only — this is a local dev tool, not
// a shared service).
type ProxyConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebConfig defines where the HTTP/WS API (and dashboard, unless
// Headless) is served.
type WebConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Headless bool   `yaml:"headless"`
}

// StorageConfig holds the data directory setting and capture caps.
// DataDir (and its AGENTPROBE_DATA_DIR override) is loaded and validated
// but does not decide where agentprobe.db is opened: the CLI uses its
// --data-dir flag for that.
type StorageConfig struct {
	DataDir     string `yaml:"dataDir"`
	MaxBodySize int64  `yaml:"maxBodySize"`
}

// StreamingConfig controls SSE capture behavior. AgentProbe always
// streams responses through live; IdleTimeoutMs is informational only,
// bounding how long a stalled flow is expected to sit pending before its
// response hook would naturally reclaim it.
type StreamingConfig struct {
	IdleTimeoutMs int `yaml:"idleTimeoutMs"`
}

const (
	defaultProxyPort = 8080
	defaultWebPort   = 8899
	defaultMaxBody   = 10 * 1024 * 1024
	defaultIdleMs    = 30000

	envProxyPort = "AGENTPROBE_PROXY_PORT"
	envWebPort   = "AGENTPROBE_WEB_PORT"
	envDataDir   = "AGENTPROBE_DATA_DIR"
)

// Load reads and parses config.yaml from the given path, applies
// defaults for anything unset, then applies environment variable
// overrides (which always win over the file). A missing file is not an
// error — defaults are used as-is, matching first-run behavior.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes a default config.yaml with all fields populated
// and a comment header, for `agentprobe init` and first-run setup.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# AgentProbe Configuration
#
# proxy:
#   host/port: where the intercepting proxy listens (default 127.0.0.1:8080)
#
# web:
#   host/port: where the HTTP/WS API and dashboard are served
#   headless: true disables the dashboard UI, serving only /api and /ws
#
# storage:
#   dataDir: data directory setting; agentprobe.db itself is opened in
#     the --data-dir directory, not here
#   maxBodySize: request/response bodies larger than this are truncated
#     for storage (the proxied traffic itself is never modified)
#
# streaming:
#   idleTimeoutMs: informational cap on how long a stalled stream may sit
#     pending before being considered abandoned

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

func applyDefaults() *Config {
	return &Config{
		Proxy: ProxyConfig{Host: "127.0.0.1", Port: defaultProxyPort},
		Web:   WebConfig{Host: "127.0.0.1", Port: defaultWebPort, Headless: false},
		Storage: StorageConfig{
			DataDir:     defaultDataDir(),
			MaxBodySize: defaultMaxBody,
		},
		Streaming: StreamingConfig{IdleTimeoutMs: defaultIdleMs},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentprobe"
	}
	return home + "/.agentprobe"
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := intFromEnv(envProxyPort); ok {
		cfg.Proxy.Port = v
	}
	if v, ok := intFromEnv(envWebPort); ok {
		cfg.Web.Port = v
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
}

func intFromEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func validate(cfg *Config) error {
	if cfg.Proxy.Host == "" {
		return fmt.Errorf("proxy.host must not be empty")
	}
	if cfg.Proxy.Port < 1 || cfg.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port %d out of range (1-65535)", cfg.Proxy.Port)
	}
	if cfg.Web.Port < 1 || cfg.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range (1-65535)", cfg.Web.Port)
	}
	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir must not be empty")
	}
	if cfg.Storage.MaxBodySize <= 0 {
		return fmt.Errorf("storage.maxBodySize must be positive")
	}
	if cfg.Streaming.IdleTimeoutMs < 0 {
		return fmt.Errorf("streaming.idleTimeoutMs must be non-negative")
	}
	return nil
}
