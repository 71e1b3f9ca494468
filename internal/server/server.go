// Package server exposes deals, the allocation calculator and the review
// board over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/people"
	"github.com/sells-group/dealdock/internal/store"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Store  store.Store
	Board  *dock.Board
	People *people.Directory
	// Gatherer backs /metrics. Nil falls back to the default registry.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
}

// Server routes HTTP requests to the store and board.
type Server struct {
	store  store.Store
	board  *dock.Board
	engine *dock.Engine
	people *people.Directory
	router chi.Router
}

// New builds the router.
func New(deps Deps) *Server {
	s := &Server{
		store:  deps.Store,
		board:  deps.Board,
		engine: deps.Board.Engine(),
		people: deps.People,
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/compute", s.handleCompute)
	r.Get("/report", s.handleReport)
	r.Post("/board/pass", s.handleBoardPass)
	r.Get("/board", s.handleBoard)

	r.Route("/deals", func(r chi.Router) {
		r.Get("/", s.handleListDeals)
		r.Post("/", s.handleCreateDeal)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDeal)
			r.Patch("/", s.handleUpdateDeal)
			r.Delete("/", s.handleDeleteDeal)
			r.Get("/conflicts", s.handleConflicts)
			r.Get("/readiness", s.handleReadiness)
			r.Get("/actuals", s.handleActuals)
			r.Post("/allocate", s.handleAllocate)
			r.Post("/approve", s.handleApprove)
			r.Post("/finalize", s.handleFinalize)
		})
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("component", "server"), zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server", zap.String("component", "server"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		zap.L().Debug("http request",
			zap.String("component", "server"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
