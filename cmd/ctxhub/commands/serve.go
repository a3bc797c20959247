package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/config"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/server"
	"github.com/ctxhub-ai/ctxhub/internal/storage"
	"github.com/ctxhub-ai/ctxhub/internal/store"
	"github.com/ctxhub-ai/ctxhub/internal/watcher"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the context hub server",
	Long: `Start the hub that clients connect to over WebSocket.

The workspace is the directory file sources resolve against; it defaults
to the current directory. Configuration is read from ctxhub.json / .jsonc /
.yaml in the workspace (and ~/.config/ctxhub), flags win over config.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8180, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Workspace directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging(true)
	_ = godotenv.Load()

	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" && !rootCmd.PersistentFlags().Changed("log-level") {
		logLevel = cfg.LogLevel
		initLogging(true)
	}

	log := logging.Component("serve")
	log.Info().Str("version", Version).Str("workspace", workDir).Msg("starting ctxhub")

	// Persistence lives under the XDG data dir unless config points
	// elsewhere or switches it off.
	var storeOpts store.Options
	if cfg.PersistEnabled() {
		dataDir := cfg.DataDir
		if dataDir == "" {
			paths := config.GetPaths()
			if err := paths.EnsurePaths(); err != nil {
				return err
			}
			dataDir = paths.StoragePath()
		}
		storeOpts.Storage = storage.New(dataDir)
	}

	st, err := store.New(cmd.Context(), storeOpts)
	if err != nil {
		return err
	}
	br := bridge.New(workDir)
	bus := event.NewBus()

	serverConfig := server.DefaultConfig()
	serverConfig.Host = serveHostname
	serverConfig.Port = servePort
	if cfg.Port != 0 && !cmd.Flags().Changed("port") {
		serverConfig.Port = cfg.Port
	}
	if cfg.Host != "" && !cmd.Flags().Changed("hostname") {
		serverConfig.Host = cfg.Host
	}
	serverConfig.Workspace = workDir
	if len(cfg.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = cfg.AllowedOrigins
	}
	if d, err := time.ParseDuration(cfg.PingInterval); err == nil && cfg.PingInterval != "" {
		serverConfig.PingInterval = d
	}

	srv := server.New(serverConfig, st, br, bus)

	var w *watcher.Watcher
	if cfg.WatcherEnabled() {
		opts := watcher.Options{}
		if cfg.Watcher != nil {
			opts.Ignore = cfg.Watcher.Ignore
			if d, err := time.ParseDuration(cfg.Watcher.Debounce); err == nil && cfg.Watcher.Debounce != "" {
				opts.Debounce = d
			}
		}
		w, err = watcher.New(workDir, st, br, bus, opts)
		if err != nil {
			log.Warn().Err(err).Msg("workspace watcher unavailable")
		} else {
			w.Start()
		}
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("host", serverConfig.Host).Int("port", serverConfig.Port).Msg("listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w != nil {
		if err := w.Stop(); err != nil {
			log.Warn().Err(err).Msg("watcher stop")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
	bus.Close()

	log.Info().Msg("stopped")
	return nil
}
