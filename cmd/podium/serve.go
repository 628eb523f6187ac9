package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voting HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runServer(cmd.Context())
		},
	}
}

func (app *application) runServer(ctx context.Context) error {
	rt, cleanup, err := app.open()
	if err != nil {
		return err
	}
	defer cleanup()

	sqlDB, err := rt.db.DB()
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Repository: rt.repository,
		Tallies:    rt.tallies,
		Health:     sqlDB,
		Logger:     rt.logger,
		Realtime:   server.NewRealtimeDispatcher(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		rt.logger.Info("server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
