// Package serve implements the command that runs the HTTP API.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aquere/libros-iva/cmd/root"
	"aquere/libros-iva/internal/logging"

	"github.com/spf13/cobra"
)

var addr string

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serves the upload, preview, process and client endpoints under /api and Prometheus metrics under /metrics.`,
	RunE:  serveFunc,
}

func init() {
	Cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
}

func serveFunc(cmd *cobra.Command, args []string) error {
	c := root.GetContainer()
	cfg := c.GetConfig()
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           c.APIServer().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		root.Log.Info("HTTP server listening", logging.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	root.Log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
