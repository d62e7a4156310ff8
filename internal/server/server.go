package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/ai"
	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/occupation"
	"github.com/kira-project/kira-recommender/internal/recommend"
)

// Server exposes the recommendation engine over HTTP. The engine itself is
// stateless; concurrency across requests needs no coordination here beyond
// what net/http already provides.
type Server struct {
	engine    *recommend.Engine
	catalog   *occupation.Catalog
	resolver  esco.Resolver
	explainer ai.Explainer
	logger    *zap.Logger
	addr      string
}

// Deps aggregates the collaborators of the HTTP layer. Explainer may be nil
// when the AI explanation feature is disabled.
type Deps struct {
	Engine    *recommend.Engine
	Catalog   *occupation.Catalog
	Resolver  esco.Resolver
	Explainer ai.Explainer
	Logger    *zap.Logger
}

func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    deps.Engine,
		catalog:   deps.Catalog,
		resolver:  deps.Resolver,
		explainer: deps.Explainer,
		logger:    logger,
		addr:      addr,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Post("/recommendations", s.handleRecommendations)
	r.Get("/occupations", s.handleOccupations)

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", s.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
