package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/api"
)

const shutdownTimeout = 15 * time.Second

var (
	servePort         int
	serveCollectEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the registry HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewServer(env.Store, env.Pipeline, cfg.Server.CORSOrigins).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if serveCollectEvery > 0 {
			go collectLoop(ctx, env, serveCollectEvery)
		}

		return listenAndServe(ctx, srv)
	},
}

// listenAndServe runs srv until ctx is cancelled, then drains in-flight
// requests.
func listenAndServe(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

// collectLoop fetches the configured sources and runs a batch every
// interval until ctx is done.
func collectLoop(ctx context.Context, env *pipelineEnv, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	zap.L().Info("scheduled collection enabled", zap.Duration("every", every))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		items, err := gatherItems(ctx, itemFlags{collect: true}, env.Lexicon)
		if err != nil {
			zap.L().Error("scheduled collection failed", zap.Error(err))
			continue
		}
		sum := env.Pipeline.Run(ctx, items)
		zap.L().Info("scheduled collection complete",
			zap.Int("scraped", sum.Scraped),
			zap.Int("added", sum.Added),
			zap.Int("updated", sum.Updated),
		)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveCollectEvery, "collect-every", 0, "collect configured sources on this interval (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
