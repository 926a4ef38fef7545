package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepgram/aiproxy/internal/api/v1/routes"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/internal/services"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := logger.For(logger.APP)

	svc, err := services.InitializeServices(ctx, a.config)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		Addr:              a.config.Gateway.Addr,
		Handler:           routes.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Gateway starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", a.config.Gateway.ShutdownTimeout).Msg("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Gateway.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down gateway: %w", err)
	}
	log.Info().Msg("Gateway stopped")
	return nil
}
