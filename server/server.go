// Package server exposes the HTTP API: health, status, metrics, and the
// registration command surface for watches and tenant destinations. It
// injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/stream-herald/telemetry"
	"github.com/onnwee/stream-herald/track"
	"github.com/onnwee/stream-herald/twitchapi"
)

// NewMux returns the HTTP handler with all routes.
func NewMux(db *sql.DB, store track.Store, helix *twitchapi.HelixClient) http.Handler {
	handlers := NewHandlers(db, store, helix)

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /healthz", handlers.HandleHealthz)
	mux.HandleFunc("GET /readyz", handlers.HandleReadyz)
	mux.HandleFunc("GET /status", handlers.HandleStatus)

	// Registration command surface
	mux.HandleFunc("POST /tenants/{tenant}/watches", handlers.HandleWatchAdd)
	mux.HandleFunc("GET /tenants/{tenant}/watches", handlers.HandleWatchList)
	mux.HandleFunc("DELETE /tenants/{tenant}/watches/{login}", handlers.HandleWatchRemove)
	mux.HandleFunc("PUT /tenants/{tenant}/watches/{login}/announce", handlers.HandleAnnounceSet)
	mux.HandleFunc("GET /tenants/{tenant}/config", handlers.HandleTenantConfigGet)
	mux.HandleFunc("PUT /tenants/{tenant}/config", handlers.HandleTenantConfigPut)

	// Wrap with correlation ID injector and request logging.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.LoggerWithCorr(ctx).Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.statusCode))
	})
}

// statusRecorder wraps ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, db *sql.DB, store track.Store, helix *twitchapi.HelixClient, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(db, store, helix),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
