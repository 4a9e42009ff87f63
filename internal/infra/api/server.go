package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/infra/metrics"
)

const (
	WebhookPath = "/api/v1/billing/webhook"
	SyncPath    = "/api/v1/subscription/sync"
)

type RouterDeps struct {
	Webhook        http.Handler
	Reconcile      http.Handler
	RequestTimeout time.Duration
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(deps RouterDeps, logger *zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(logger), Recover(logger))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(Timeout(deps.RequestTimeout))
		}
		r.Handle(WebhookPath, deps.Webhook)
		r.Handle(SyncPath, deps.Reconcile)
	})
	return r
}

// Server owns the listener lifecycle.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewServer(port int, handler http.Handler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: &l,
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
