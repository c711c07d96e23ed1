// Package server exposes a picks table over HTTP using the same PostgREST-style
// contract as the hosted backend, so shared-mode clients can point at either.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/mmcdole/pickflix/internal/sqlstore"
)

// PicksStore is the table the server fronts.
type PicksStore interface {
	List(ctx context.Context) ([]sqlstore.Pick, error)
	Record(ctx context.Context, id int) error
	DeleteExcept(ctx context.Context, keep int) (int64, error)
}

// Options configures a Server.
type Options struct {
	RateLimit  int           // requests per window per client IP; 0 disables
	RateWindow time.Duration // defaults to one minute
	Logger     *slog.Logger
}

// Server serves /rest/v1/picks.
type Server struct {
	store  PicksStore
	opts   Options
	logger *slog.Logger
}

// New creates a server backed by store.
func New(store PicksStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Server{store: store, opts: opts, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/rest/v1/picks", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, s.opts.RateWindow))
		}
		r.Get("/", s.listPicks)
		r.Post("/", s.createPick)
		r.Delete("/", s.deletePicks)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("picks server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.logger.Info("picks server stopped")
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"client", r.Header.Get("X-Client-Info"),
			"duration", time.Since(start))
	})
}
