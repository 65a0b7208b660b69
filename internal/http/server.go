// Package http exposes the transaction CRUD and summary API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fintrack/internal/core"
)

// Service is the operation surface handlers call into.
// *services.TransactionService satisfies it.
type Service interface {
	Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
	BulkCreate(ctx context.Context, inputs []core.TransactionInput) (int, error)
	Summarize(ctx context.Context, start, end *core.Date) (core.Summary, error)
}

// Server wires the chi router around the transaction service.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	service Service
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, service Service) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	// existing clients call /transactions/ with a trailing slash
	s.router.Use(middleware.StripSlashes)

	s.router.Use(requestLogger)
	s.router.Use(securityHeaders)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", handleHealth)
	s.router.Get("/readyz", handleReady)

	s.router.Route("/transactions", func(r chi.Router) {
		r.Get("/", s.handleListTransactions)
		r.Post("/", s.handleCreateTransaction)
		r.Post("/bulk", s.handleBulkCreateTransactions)
		r.Get("/{id}", s.handleGetTransaction)
		r.Put("/{id}", s.handleUpdateTransaction)
		r.Delete("/{id}", s.handleDeleteTransaction)
	})

	s.router.Get("/summary", s.handleSummary)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts serving and blocks until shutdown or failure.
func (s *Server) ListenAndServe() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
