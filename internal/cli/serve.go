package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upb/answer-detector/routes"
	"go.uber.org/zap"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(context.Background()) }()

			cfg := deps.Config
			if port != 0 {
				cfg.Server.Port = port
			}

			srv := &http.Server{
				Addr:         cfg.Server.Address(),
				Handler:      routes.SetupRoutes(deps),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				deps.Logger.Info("server listening",
					zap.String("addr", srv.Addr),
					zap.Strings("chain", deps.Chain.Names()))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					deps.Logger.Error("server error", zap.Error(err))
					return err
				}
				return nil
			case <-ctx.Done():
			}

			deps.Logger.Info("shutting down server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				deps.Logger.Error("graceful shutdown failed", zap.Error(err))
				return err
			}

			deps.Logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT and SERVER_PORT)")
	return cmd
}
