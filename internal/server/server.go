// Package server exposes heavy analyses and the standard query path over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ShayCichocki/heavysql/internal/orchestrator"
	"github.com/ShayCichocki/heavysql/internal/state"
	"github.com/ShayCichocki/heavysql/internal/tabledb"
	"github.com/ShayCichocki/heavysql/pkg/models"
)

const (
	serviceName = "heavysql"
	bodyLimit   = 1 << 20
)

// Analyzer runs heavy analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req orchestrator.Request) (*models.HeavyAnalysis, error)
}

// Generator produces draft SQL on the standard path.
type Generator interface {
	Generate(ctx context.Context, question, schemaSummary string) (string, error)
}

// Tables resolves table schemas and executes SQL.
type Tables interface {
	Schema(id string) (string, error)
	Execute(ctx context.Context, query string) (tabledb.Rows, error)
}

// Runs reads persisted analyses.
type Runs interface {
	GetRun(ctx context.Context, id string) (*models.HeavyAnalysis, error)
	ListRuns(ctx context.Context, limit int) ([]state.RunSummary, error)
}

// Deps are the collaborators behind the handlers. Analyzer is required;
// the others disable their features when nil.
type Deps struct {
	Analyzer  Analyzer
	Generator Generator
	Tables    Tables
	Runs      Runs
	// Stop wraps each request context so an external stop signal cancels it.
	Stop func(context.Context) (context.Context, context.CancelFunc)
}

// Server is the HTTP surface.
type Server struct {
	deps    Deps
	handler http.Handler
}

// New builds the router.
func New(deps Deps) (*Server, error) {
	if deps.Analyzer == nil {
		return nil, errors.New("server needs an analyzer")
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/query", s.handleQuery)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	s.handler = otelhttp.NewHandler(r, serviceName)
	return s, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.deps.Stop != nil {
		return s.deps.Stop(r.Context())
	}
	return context.WithCancel(r.Context())
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[server] %s %s %d %v id=%s", r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Round(time.Millisecond), chimw.GetReqID(r.Context()))
	})
}
