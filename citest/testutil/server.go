package testutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/server"
	"github.com/ctxhub-ai/ctxhub/internal/storage"
	"github.com/ctxhub-ai/ctxhub/internal/store"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
)

// TestServer wraps a hub instance for testing
type TestServer struct {
	Server  *server.Server
	Store   *store.Store
	Bus     *event.Bus
	BaseURL string
	WSURL   string
	TempDir string
	WorkDir string
	port    int
}

// TestServerOption configures TestServer
type TestServerOption func(*testServerConfig)

type testServerConfig struct {
	workDir      string
	storageDir   string
	pingInterval time.Duration
	persist      bool
}

// WithWorkDir sets the workspace directory file sources resolve against
func WithWorkDir(dir string) TestServerOption {
	return func(c *testServerConfig) {
		c.workDir = dir
	}
}

// WithPingInterval sets the liveness probe interval
func WithPingInterval(d time.Duration) TestServerOption {
	return func(c *testServerConfig) {
		c.pingInterval = d
	}
}

// WithPersistence backs the store with on-disk storage in the temp dir
func WithPersistence() TestServerOption {
	return func(c *testServerConfig) {
		c.persist = true
	}
}

// WithStorageDir backs the store with on-disk storage in a directory
// the caller owns. Stop does not remove it, so a second server can
// reload the same state.
func WithStorageDir(dir string) TestServerOption {
	return func(c *testServerConfig) {
		c.persist = true
		c.storageDir = dir
	}
}

// StartTestServer creates and starts a hub on a free port
func StartTestServer(opts ...TestServerOption) (*TestServer, error) {
	cfg := &testServerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	// Try default .env locations
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load("../.env")
	_ = godotenv.Load(".env")

	tempDir, err := os.MkdirTemp("", "ctxhub-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	workDir := cfg.workDir
	if workDir == "" {
		workDir = tempDir
	}

	port, err := findAvailablePort()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	ctx := context.Background()

	storeOpts := store.Options{}
	if cfg.persist {
		storagePath := cfg.storageDir
		if storagePath == "" {
			storagePath = filepath.Join(tempDir, "storage")
		}
		if err := os.MkdirAll(storagePath, 0755); err != nil {
			os.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
		storeOpts.Storage = storage.New(storagePath)
	}

	st, err := store.New(ctx, storeOpts)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	br := bridge.New(workDir)
	bus := event.NewBus()

	serverConfig := server.DefaultConfig()
	serverConfig.Host = "127.0.0.1"
	serverConfig.Port = port
	serverConfig.Workspace = workDir
	if cfg.pingInterval > 0 {
		serverConfig.PingInterval = cfg.pingInterval
	}

	srv := server.New(serverConfig, st, br, bus)

	go func() {
		_ = srv.Start()
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForServer(baseURL, 10*time.Second); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		bus.Close()
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("server failed to start: %w", err)
	}

	return &TestServer{
		Server:  srv,
		Store:   st,
		Bus:     bus,
		BaseURL: baseURL,
		WSURL:   fmt.Sprintf("ws://127.0.0.1:%d/ws", port),
		TempDir: tempDir,
		WorkDir: workDir,
		port:    port,
	}, nil
}

// Stop shuts down the test server and cleans up
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if ts.Server != nil {
		err = ts.Server.Shutdown(ctx)
	}
	if ts.Bus != nil {
		ts.Bus.Close()
	}
	if ts.TempDir != "" {
		os.RemoveAll(ts.TempDir)
	}
	return err
}

// Dial returns a connected client for this server
func (ts *TestServer) Dial() (*client.Client, error) {
	c := client.New(client.Options{URL: ts.BaseURL})
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Health fetches the /health snapshot
func (ts *TestServer) Health() (*client.Health, error) {
	c := client.New(client.Options{URL: ts.BaseURL})
	return c.Health(context.Background())
}

// findAvailablePort finds an available TCP port
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer waits for the server to answer health checks
func waitForServer(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
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
