package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ehdc-splitter/internal/logger"
)

// Config contains HTTP server settings
type Config struct {
	Addr string
}

// Server serves the outputs of a run read-only
type Server struct {
	config     Config
	outputs    *OutputsHandler
	httpServer *http.Server
	router     *mux.Router
	log        *zap.Logger
}

// NewServer creates a server over the outputs written to dir
func NewServer(config Config, dir string, log *zap.Logger) *Server {
	s := &Server{
		config:  config,
		outputs: &OutputsHandler{Dir: dir},
		log:     logger.OrNop(log),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	// registered on the root router so a method mismatch answers 405
	s.router.HandleFunc("/api/outputs", s.outputs.List).Methods(http.MethodGet)
	s.router.HandleFunc("/api/outputs/{name}", s.outputs.Get).Methods(http.MethodGet)
	s.router.HandleFunc("/api/outputs/{name}/records/{id}", s.outputs.GetRecord).Methods(http.MethodGet)

	s.router.Use(RequestLogging(s.log))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", zap.String("addr", s.httpServer.Addr), zap.String("dir", s.outputs.Dir))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}
