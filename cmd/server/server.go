package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// newHTTPServer creates a server on port with the configured timeouts.
func (app *application) newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}
}

// startHTTPServers serves the API and operations routers until ctx is done
// or either server fails, then shuts both down gracefully.
func (app *application) startHTTPServers(ctx context.Context, apiRouter, opsRouter http.Handler) error {
	servers := []*http.Server{
		app.newHTTPServer(app.config.Server.Port, apiRouter),
		app.newHTTPServer(app.config.Server.OpsPort, opsRouter),
	}

	serveErr := make(chan error, len(servers))
	for _, server := range servers {
		go func(server *http.Server) {
			app.logger.Info("Starting server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("server %s failed: %w", server.Addr, err)
			}
		}(server)
	}

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Shutting down servers...")
	case runErr = <-serveErr:
		app.logger.Error("Server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	var shutdownErrs []error
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("Server shutdown failed", "addr", server.Addr, "error", err)
			shutdownErrs = append(shutdownErrs, fmt.Errorf("server %s shutdown failed: %w", server.Addr, err))
		}
	}

	app.logger.Info("Server shutdown completed")
	return errors.Join(append([]error{runErr}, shutdownErrs...)...)
}
