package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	name       string
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(name, addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{name: name, httpServer: s, logger: logger}
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("service", s.name), zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server", zap.String("service", s.name))
	return s.httpServer.Shutdown(ctx)
}
