package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/assemble"
	"github.com/gurs-tools/kataster-cli/internal/match"
	"github.com/gurs-tools/kataster-cli/internal/monitoring"
	"github.com/gurs-tools/kataster-cli/internal/spatial"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		collector := monitoring.NewCollector(store)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitor), cfg.Monitor)
		go checker.Run(ctx)

		api := &apiServer{
			matcher:   match.New(store, cfg.Match),
			resolver:  spatial.New(store, cfg.Spatial),
			assembler: assemble.New(cfg.Match.MaxResults),
			store:     store,
			collector: collector,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := queryTimeout(cmd.Context())
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
