package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/tidal-mcp/mcpserver"
	"github.com/jrsteele09/tidal-mcp/server"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser login endpoints and MCP over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "HTTP listen port (default 8100)")
	cmd.Flags().StringSlice("allowed-origins", nil, "origins allowed to call the HTTP API with credentials")
	cmd.Flags().String("admin-token", "", "bearer token for GET /auth/sessions; the route is disabled when empty")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	displayAppname(c.config.GetAppName())
	if c.config.GetClientID() == "" {
		c.logger.Warn().Msg("No TIDAL client id configured, logins will be rejected by TIDAL")
	}

	a, err := newApp(c.config, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	manager, err := a.newManager(registry)
	if err != nil {
		return err
	}

	mcp := mcpserver.New(manager, version, c.logger)
	handler, err := server.New(c.config, manager,
		server.WithLogger(c.logger),
		server.WithMCPHandler(mcpserver.NewHTTPHandler(mcp)),
		server.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	manager.StartJanitor(ctx, c.config.GetJanitorInterval())

	httpServer := &http.Server{
		Addr:              c.config.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer, c.logger)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	c.logger.Info().Msg("Shutting down")
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}
