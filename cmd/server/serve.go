package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpattn/wellhistory/internal/history"
	"github.com/rpattn/wellhistory/internal/httpapi"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/schema"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve entity histories over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := logging.New("server")
			ctx, cancel := context.WithCancel(logging.With(cmd.Context(), logger))
			defer cancel()

			s, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			registry, err := schema.DefaultRegistry()
			if err != nil {
				return err
			}
			engine := history.NewEngine(registry, s, history.WithLookupWait(cfg.History.LookupWait))

			server := &http.Server{
				Addr: cfg.Server.Addr,
				Handler: httpapi.NewRouter(engine, httpapi.Options{
					AllowedOrigins: cfg.Server.AllowedOrigins,
					Codes:          s,
					LookupWait:     cfg.History.LookupWait,
					Logger:         logging.New("http"),
				}),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("starting history server on %s", cfg.Server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
				return nil
			case <-quit:
			}
			logger.Info("shutting down server")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("server exited")
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
