package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/recera/kgview/cmd/kgview/internal/config"
	"github.com/recera/kgview/pkg/live"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the viewer to browsers",
		Long: `Starts an HTTP server. Open / in a browser: each page gets its own live
session over a websocket. /frame.svg renders a one-off layout, /metrics exposes
Prometheus metrics and /healthz answers health checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Log, "")
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	addr := cfg.Server.Addr()
	src, fixture, err := openSource(cfg, logger)
	if err != nil {
		return err
	}

	liveServer, err := live.NewServer(live.Options{
		Source:      src,
		Engine:      engineOptions(cfg, logger),
		MaxSessions: cfg.Server.MaxSessions,
		RenderTicks: cfg.Viewer.Ticks,
		CheckOrigin: originChecker(cfg.Server.AllowedOrigins),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           liveServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("kgview serving", zap.String("addr", "http://"+addr), zap.String("source", cfg.Source.Kind))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		liveServer.Close()
		return httpServer.Shutdown(shutdownCtx)
	})
	if fixture != nil && cfg.Source.Watch {
		g.Go(func() error {
			return watchFixture(gctx, fixture, logger, liveServer.Refresh)
		})
	}

	err = g.Wait()
	logger.Info("kgview stopped")
	return err
}

// originChecker accepts same-host origins plus the configured ones.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}
