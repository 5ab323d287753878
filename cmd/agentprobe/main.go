// Package main is the CLI entry point for AgentProbe — a local
// intercepting proxy that observes HTTP/HTTPS traffic between LLM
// agent CLIs (Claude Code, Codex, Gemini CLI, Cline, ...) and their
// model providers, classifies it, and makes it inspectable over a
// REST/WebSocket API.
//
// Architecture overview:
//
//	Agent CLI --> AgentProbe proxy (:8080) --> LLM provider
//	                |
//	                +-- classify agent/provider/protocol
//	                |-- parse SSE events incrementally
//	                |-- persist to SQLite
//	                +-- broadcast to dashboard clients (:8899/ws)
//
// CLI commands (cobra):
//
//	agentprobe start  - start the proxy and API server
//	agentprobe init    - write a default config.yaml
//	agentprobe trust   - install the MITM CA bundle into the OS trust store
//	agentprobe env     - print environment variable overrides
//	agentprobe version - print the build version
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentprobe/agentprobe/internal/api"
	"github.com/agentprobe/agentprobe/internal/cert"
	"github.com/agentprobe/agentprobe/internal/config"
	"github.com/agentprobe/agentprobe/internal/flow"
	"github.com/agentprobe/agentprobe/internal/hub"
	"github.com/agentprobe/agentprobe/internal/proxyhook"
	"github.com/agentprobe/agentprobe/internal/session"
	"github.com/agentprobe/agentprobe/internal/store"
)

// Build-time variables injected via ldflags:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=abc123 -X main.buildDate=2026-07-30"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// defaultDataDir returns ~/.agentprobe, where config.yaml and
// agentprobe.db live.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentprobe"
	}
	return filepath.Join(home, ".agentprobe")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// dataDir is the global flag for the AgentProbe data/config directory.
var dataDir string

var rootCmd = &cobra.Command{
	Use:   "agentprobe",
	Short: "AgentProbe — traffic observability proxy for LLM agent CLIs",
	Long: `AgentProbe is a local intercepting proxy that sits between an LLM
agent CLI and its model provider. It classifies traffic by agent and
provider, incrementally parses streaming (SSE) responses, persists
every captured exchange to SQLite, and serves it over a REST/WebSocket
API for a live dashboard.

Run 'agentprobe init' to write a default config, then 'agentprobe
start' to run the proxy.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dataDir,
		"data-dir",
		defaultDataDir(),
		"Path to AgentProbe data/config directory",
	)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(versionCmd)
}

// ============================================================================
// agentprobe start
// ============================================================================

var (
	flagProxyPort int
	flagWebPort   int
	flagHost      string
	flagHeadless  bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy and API server",
	Long: `Start the AgentProbe intercepting proxy and its REST/WebSocket API
server. The proxy captures every HTTP exchange it sees, classifies it,
and persists it to agentprobe.db; the API server exposes it for a
dashboard or CLI consumers.

--headless leaves the REST/WebSocket API unchanged; it stops the
embedded dashboard from being served at "/" and drops the dashboard
URL line from the startup banner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd, args)
	},
}

func init() {
	startCmd.Flags().IntVar(&flagProxyPort, "proxy-port", 0, "Proxy listen port (overrides config)")
	startCmd.Flags().IntVar(&flagWebPort, "web-port", 0, "API/WS listen port (overrides config)")
	startCmd.Flags().StringVar(&flagHost, "host", "", "Bind host for both listeners (overrides config)")
	startCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Serve only /api and /ws, without the embedded dashboard")
}

// runStart wires the whole stack together and blocks until shutdown.
func runStart(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	cfg, err := config.Load(filepath.Join(dataDir, "config.yaml"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagProxyPort != 0 {
		cfg.Proxy.Port = flagProxyPort
	}
	if flagWebPort != 0 {
		cfg.Web.Port = flagWebPort
	}
	if flagHost != "" {
		cfg.Proxy.Host = flagHost
		cfg.Web.Host = flagHost
	}
	if flagHeadless {
		cfg.Web.Headless = true
	}

	st, err := store.Open(filepath.Join(dataDir, "agentprobe.db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h := hub.New()
	go h.Run()

	tracker := session.NewSafeTracker()

	controller := flow.New(st, h, tracker, cfg.Storage.MaxBodySize)

	upstreamTransport := proxyhook.NewTransport()
	adapter := proxyhook.New(upstreamTransport, controller)

	proxyAddr := fmt.Sprintf("%s:%d", cfg.Proxy.Host, cfg.Proxy.Port)
	proxyServer := &http.Server{
		Addr:              proxyAddr,
		Handler:           adapter,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout/ReadTimeout — streaming agent responses can run
		// for minutes; the SSE parser flushes on whatever it receives.
	}

	webAPI := api.New(st, h, tracker)
	webAPI.SetHeadless(cfg.Web.Headless)
	webAddr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	webServer := &http.Server{
		Addr:              webAddr,
		Handler:           webAPI.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watcher, err := config.NewWatcher(dataDir, config.WatchTargets{
		OnConfigChange: func() {
			if reloaded, reloadErr := config.Load(filepath.Join(dataDir, "config.yaml")); reloadErr != nil {
				fmt.Fprintf(os.Stderr, "[agentprobe] warning: failed to reload config: %v\n", reloadErr)
			} else if reloaded.Storage.MaxBodySize != cfg.Storage.MaxBodySize {
				fmt.Println("[agentprobe] storage.maxBodySize changed; restart to apply")
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		fmt.Printf("[agentprobe] proxy listening on http://%s\n", proxyAddr)
		errCh <- proxyServer.ListenAndServe()
	}()
	go func() {
		fmt.Printf("[agentprobe] api listening on http://%s\n", webAddr)
		if !cfg.Web.Headless {
			fmt.Printf("[agentprobe] dashboard at http://%s/\n", webAddr)
		}
		fmt.Println("[agentprobe] press Ctrl+C to stop")
		errCh <- webServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Println("\n[agentprobe] shutting down (signal received)...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := proxyServer.Shutdown(shutdownCtx); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "[agentprobe] proxy shutdown error: %v\n", shutdownErr)
	}
	if shutdownErr := webServer.Shutdown(shutdownCtx); shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "[agentprobe] api shutdown error: %v\n", shutdownErr)
	}

	fmt.Println("[agentprobe] stopped")
	return nil
}

// ============================================================================
// agentprobe init
// ============================================================================

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	Long:  `Create the AgentProbe data directory and write a default config.yaml, if one doesn't already exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		path := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("[agentprobe] config already exists at %s\n", path)
			return nil
		}
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		fmt.Printf("[agentprobe] wrote default config to %s\n", path)
		fmt.Println("[agentprobe] run 'agentprobe start' to begin capturing traffic")
		return nil
	},
}

// ============================================================================
// agentprobe trust
// ============================================================================

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Install the MITM CA bundle into the OS trust store",
	Long: `Locate the CA bundle AgentProbe's underlying MITM engine wrote to
~/.mitmproxy/mitmproxy-ca-cert.pem and install it into the local OS
trust store, so TLS connections through the proxy aren't rejected by
agent CLIs.

Exits non-zero if the bundle is missing or the platform's trust store
isn't supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := cert.Locate()
		if err != nil {
			return fmt.Errorf("failed to locate CA bundle: %w", err)
		}
		if !status.Exists {
			return fmt.Errorf("CA bundle not found at %s — run an HTTPS request through the proxy first so the MITM engine generates one", status.Path)
		}
		if err := cert.Install(status.Path); err != nil {
			return fmt.Errorf("failed to install CA bundle: %w", err)
		}
		fmt.Printf("[agentprobe] installed CA bundle from %s into the system trust store\n", status.Path)
		return nil
	},
}

// ============================================================================
// agentprobe env
// ============================================================================

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print environment variable overrides",
	Long:  `Print the environment variables AgentProbe reads to override config.yaml, and their current values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range []string{"AGENTPROBE_PROXY_PORT", "AGENTPROBE_WEB_PORT", "AGENTPROBE_DATA_DIR"} {
			v := os.Getenv(name)
			if v == "" {
				v = "(unset)"
			}
			fmt.Printf("%-24s %s\n", name, v)
		}
		return nil
	},
}

// ============================================================================
// agentprobe version
// ============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("agentprobe %s (commit: %s, built: %s)\n", version, commit, buildDate)
		return nil
	},
}
