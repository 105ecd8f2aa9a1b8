package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geminiclient/internal/api"
	"geminiclient/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Server wraps the http.Server to provide graceful shutdown.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewRouter assembles the routes in front of geminiAPI.
func NewRouter(geminiAPI *api.GeminiAPI, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", geminiAPI.AskHandler)
		r.Get("/exchanges", geminiAPI.ExchangesHandler)
		r.Get("/model", geminiAPI.ModelHandler)
	})

	return r
}

// New creates a new Server instance listening on host:port.
func New(host string, port int, handler http.Handler, log *logrus.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run starts the server and waits for a shutdown signal.
func (s *Server) Run() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Fatalf("Could not listen on %s: %v", s.httpServer.Addr, err)
		}
	}()
	s.log.Infof("Server is ready to handle requests at %s", s.httpServer.Addr)

	// Wait for a shutdown signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.log.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Errorf("Server shutdown failed: %v", err)
		return
	}

	s.log.Info("Server gracefully stopped")
}
