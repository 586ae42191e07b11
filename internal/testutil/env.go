// Package testutil holds helpers for tests that run a real server.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// SampleCatalog is a small LORA catalog used across server tests.
const SampleCatalog = `[
  {"id": "city-neon", "name": "Neon City", "description": "Rain-soaked neon streets", "tags": ["city", "neon", "night"], "default_weight": 0.5},
  {"id": "forest", "name": "Deep Forest", "tags": ["forest", "moss"], "default_weight": 0.7},
  {"id": "portrait", "name": "Soft Portrait", "tags": ["portrait", "face"], "default_weight": 0.4}
]`

// ServerConfig returns configuration values for creating a test server.
// This avoids importing the server package directly.
type ServerConfig struct {
	Host       string
	Port       string
	HomeDir    string
	ConfigFile string
	Logger     *slog.Logger
}

// NewServerConfig creates configuration for a test server with a free
// port and a fresh home directory holding SampleCatalog and a config file
// that pins storage inside it.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()

	homeDir := t.TempDir()
	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("failed to find free port for HTTP: %v", err)
	}

	WriteFile(t, filepath.Join(homeDir, "loras.json"), SampleCatalog)

	configFile := filepath.Join(homeDir, "config.yaml")
	WriteFile(t, configFile, fmt.Sprintf(`llm:
  url: ""
storage:
  db: %q
  outputs_dir: %q
catalog:
  path: %q
`, filepath.Join(homeDir, "storage.db"), filepath.Join(homeDir, "outputs"), filepath.Join(homeDir, "loras.json")))

	return ServerConfig{
		Host:       "127.0.0.1",
		Port:       port,
		HomeDir:    homeDir,
		ConfigFile: configFile,
		Logger:     QuietLogger(),
	}
}

// URL returns the server URL for the given config.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// QuietLogger discards everything below warnings.
func QuietLogger() *slog.Logger {
	if os.Getenv("PROMPTLAB_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WaitForServer polls the /ready endpoint until it returns 200.
func WaitForServer(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url + "/ready")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// WaitForShutdown waits for a channel to receive a value or timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for shutdown")
	}
}

// FindFreePort finds an available TCP port and returns it as a string.
func FindFreePort() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer listener.Close()
	return fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port), nil
}
