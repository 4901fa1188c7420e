package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/paymcp/paymcp-go/config"
	"github.com/paymcp/paymcp-go/flows"
	"github.com/paymcp/paymcp-go/logging"
	"github.com/paymcp/paymcp-go/mcp"
	"github.com/paymcp/paymcp-go/providers"
)

const purgeInterval = 10 * time.Minute

type serveOptions struct {
	configPath string
	envFile    string
	stdio      bool
	addr       string
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server over streamable HTTP, or over stdio with --stdio.

Examples:
  paymcp-server serve --config paymcp.yaml
  PAYMCP_FLOW_MODE=progress paymcp-server serve --stdio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.Flags().BoolVar(&opts.stdio, "stdio", false, "serve MCP over stdin/stdout")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address, overrides server.addr")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load(opts.envFile)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	logger := logging.New(cfg.Log)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load env file", "path", opts.envFile, "error", envErr)
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeStore()
	go purgeExpired(ctx, store, logger)

	cfg.Provider.Logger = logger
	provider, err := providers.FromConfig(cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create payment provider: %w", err)
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: cfg.Server.Name, Version: cfg.Server.Version}, nil)
	payments, err := mcp.NewPaymentServer(server, provider,
		mcp.WithMode(cfg.Mode()),
		mcp.WithStore(store),
		mcp.WithLogger(logger),
		mcp.WithFlowOptions(
			flows.WithMaxAttempts(cfg.Flow.MaxAttempts),
			flows.WithPollInterval(cfg.Flow.PollInterval),
			flows.WithMaxWait(cfg.Flow.MaxWait),
			flows.WithArgumentValidation(cfg.Flow.ValidateArgs),
		),
	)
	if err != nil {
		return err
	}
	if err := registerTools(payments); err != nil {
		return err
	}
	logger.Info("payment server ready",
		"provider", provider.Name(), "mode", payments.Mode(), "store", cfg.Store.Type)

	if opts.stdio {
		return server.Run(ctx, &mcpsdk.StdioTransport{})
	}
	return serveHTTP(ctx, cfg.Server, server, logger)
}

func serveHTTP(ctx context.Context, cfg config.ServerConfig, server *mcpsdk.Server, logger *slog.Logger) error {
	handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg.Path, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "path", cfg.Path)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

type expiringStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpired periodically removes expired rows from SQL-backed stores. Redis,
// Mongo and the memory store expire entries on their own.
func purgeExpired(ctx context.Context, store interface{}, logger *slog.Logger) {
	purger, ok := store.(expiringStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
