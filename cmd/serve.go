package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/attacklens/attacklens/internal/api"
	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/cache"
	"github.com/attacklens/attacklens/internal/navigation"
	"github.com/attacklens/attacklens/internal/telemetry"
)

var (
	serverPort int
	serverHost string
	baseURL    string
	enableCORS bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attacklens HTTP API server",
	Long: `Start the HTTP API server backing the browser viewer.

The server loads artifacts on demand from the configured static base URL,
keeps per-viewer drill-down sessions, and serves matrix, finding and graph
views under /api/v1.

Example:
  attacklens serve --port 8080 --base-url https://artifacts.example.org/data
`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serverHost, "host", "", "host to bind to (overrides config)")
	serveCmd.Flags().StringVar(&baseURL, "base-url", "", "artifact base URL (overrides config)")
	serveCmd.Flags().BoolVar(&enableCORS, "cors", true, "enable CORS for local browser front ends")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if baseURL != "" {
		cfg.Artifacts.BaseURL = baseURL
	}

	serveLog := log.WithComponent("api-server")
	serveLog.Infow("Starting attacklens API server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Artifacts.BaseURL,
		"cache_enabled", cfg.Cache.Enabled,
		"cors_enabled", enableCORS,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Close()

	loader := artifact.NewLoader(cfg.Artifacts, log, tel)

	var datasetLoader api.DatasetLoader = loader
	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache, log)
		if err != nil {
			return fmt.Errorf("failed to initialize dataset cache: %w", err)
		}
		defer store.Close()
		datasetLoader = cache.WrapLoader(loader, store, log)
		serveLog.Infow("Dataset cache enabled",
			"ttl", cfg.Cache.TTL.String(),
			"redis", cfg.Cache.Redis.Addr != "",
		)
	}

	sessions := navigation.NewManager(datasetLoader, log, cfg.Server.SessionTTL)
	defer sessions.Close()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(log, datasetLoader, loader, sessions, tel)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(enableCORS && cfg.Server.EnableCORS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	serveLog.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
