package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	pfhttp "github.com/Strob0t/PolicyForge/internal/adapter/http"
	"github.com/Strob0t/PolicyForge/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the experience collection HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.cleanup()

		handlers := pfhttp.NewHandlers(e.collector, e.queue)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(pfhttp.CORS(e.cfg.Server.CORSOrigin))
		r.Use(pfhttp.SecurityHeaders)
		r.Use(pfhttp.Logger)
		r.Use(chimw.RealIP)
		r.Use(chimw.Recoverer)
		r.Use(chimw.Timeout(30 * time.Second))

		pfhttp.MountRoutes(r, handlers)

		addr := ":" + e.cfg.Server.Port
		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)

		go func() {
			e.log.Info("starting server", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.log.Error("server failed", "error", err)
			}
		}()

		<-done
		e.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
