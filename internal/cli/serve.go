package cli

import (
	"context"
	"fmt"

	"shlrec/internal/catalog"
	"shlrec/internal/config"
	"shlrec/internal/embedding"
	"shlrec/internal/recommend"
	"shlrec/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP recommendation API",
	Long: `Start an HTTP server that recommends SHL assessments for job descriptions.

Available endpoints:
- POST /recommend: Recommend assessments for a job description or query
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("data-file", "", "Assessment dataset JSON file (overrides config)")
	serveCmd.Flags().String("snapshot-file", "", "Embedding snapshot JSON file (overrides config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")

	// Bind flags to viper config keys
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
	bindFlag("catalog.datafile", "data-file")
	bindFlag("catalog.snapshotfile", "snapshot-file")
	bindFlag("server.tls.mode", "tls-mode")
	bindFlag("server.tls.certfile", "cert-file")
	bindFlag("server.tls.keyfile", "key-file")
	bindFlag("server.tls.cafile", "ca-file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	// Pull API keys and the embedding key from Vault when configured
	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return fmt.Errorf("failed to apply Vault secrets: %w", err)
	}

	// Validate TLS configuration after applying overrides
	tempConfig := &config.Config{Server: cfg.Server}
	if err := tempConfig.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	embedder, err := embedding.NewService(&cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	recommender := recommend.NewService(embedder, cfg.Embedding.Model, cfg, logger)
	if err := recommender.LoadAndIndex(ctx); err != nil {
		return err
	}

	if cfg.Catalog.Watch.Enabled {
		watcher := catalog.NewWatcher(cfg.Catalog.DataFile, cfg.Catalog.Watch.DebounceDelay, func() {
			if err := recommender.Reload(context.Background()); err != nil {
				logger.LogError(err, "Catalog reload failed, keeping previous index")
			}
		}, logger)
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch catalog dataset: %w", err)
		}
		defer watcher.Stop()
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, recommender, embedder, logger).Start()
}
