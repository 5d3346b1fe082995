// Package server exposes the dashboard's JSON and CSV endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"MarketDashboard/internal/market"
)

// Server routes dashboard requests to the market service.
type Server struct {
	market *market.Service
	router *mux.Router
	api    *mux.Router
	// Now stamps the live-data payload; tests replace it.
	Now func() time.Time
}

// New creates a Server with all routes registered.
func New(svc *market.Service) *Server {
	s := &Server{market: svc, router: mux.NewRouter(), Now: time.Now}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(withRequestID)
	s.router.Handle("/healthz", recoverPanic(http.HandlerFunc(handleHealth))).Methods(http.MethodGet)

	// Recovery runs inside gzip so a 500 body is compressed like any other.
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(withJSONHeaders, withGzip, recoverPanic)
	s.api = api
	api.HandleFunc("/live-data", s.handleLiveData).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/series/{instrument}", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/series/{instrument}/csv", s.handleSeriesCSV).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it down.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
