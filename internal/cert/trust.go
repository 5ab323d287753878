// Package cert locates the proxy's CA certificate and installs it into
// the local OS trust store. AgentProbe does not generate its own CA — it
// expects whatever MITM engine sits underneath it to have already
// written one to the conventional mitmproxy location, and this package's
// job is just to check for it and make the OS trust it.
package cert

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DefaultPath is where the CA bundle is expected, matching mitmproxy's
// own on-disk convention so any compatible MITM engine can be swapped in
// underneath without a config change.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".mitmproxy", "mitmproxy-ca-cert.pem"), nil
}

// Status reports whether the CA bundle exists on disk.
type Status struct {
	Path   string
	Exists bool
}

// Locate checks for the CA bundle at DefaultPath.
func Locate() (Status, error) {
	path, err := DefaultPath()
	if err != nil {
		return Status{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Status{Path: path, Exists: false}, nil
		}
		return Status{}, fmt.Errorf("checking CA bundle at %s: %w", path, err)
	}
	return Status{Path: path, Exists: true}, nil
}

// Install adds the CA bundle to the OS trust store. It is best-effort per
// platform and returns a non-nil error on any failure, including running
// on a platform this package doesn't know how to handle — the CLI's
// `trust` subcommand surfaces that error and exits non-zero rather than
// silently doing nothing.
func Install(path string) error {
	switch runtime.GOOS {
	case "darwin":
		return runTrustCommand("security", "add-trusted-cert", "-d", "-r", "trustRoot",
			"-k", "/Library/Keychains/System.keychain", path)
	case "linux":
		return installLinux(path)
	case "windows":
		return runTrustCommand("certutil", "-addstore", "-f", "ROOT", path)
	default:
		return fmt.Errorf("cert: no trust-store install known for GOOS=%s", runtime.GOOS)
	}
}

func installLinux(path string) error {
	dst := "/usr/local/share/ca-certificates/agentprobe-mitmproxy.crt"
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading CA bundle: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing CA bundle to %s (are you root?): %w", dst, err)
	}
	return runTrustCommand("update-ca-certificates")
}

func runTrustCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", name, err, out)
	}
	return nil
}
