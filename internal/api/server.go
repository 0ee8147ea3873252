// Package api provides a loopback-bound HTTP introspection surface for
// the daemon: liveness, running status, recent task history, and a
// reload trigger. There is no authentication subsystem here — the
// server is expected to bind to loopback only, which internal/config
// enforces at validation time.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"fswatchd/internal/daemon"
	"fswatchd/internal/history"
)

// Server is the introspection HTTP server.
type Server struct {
	addr   string
	router *gin.Engine
	server *http.Server
}

// ReloadFunc triggers the same hot-reload path a SIGHUP does.
type ReloadFunc func() error

// NewServer builds a Server bound to addr, serving status from d and
// history from store (store may be nil when history is disabled).
func NewServer(addr string, d *daemon.Daemon, store *history.Store, reload ReloadFunc) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(RequestID(), PanicRecovery(), AccessLog())

	h := &Handler{daemon: d, history: store, reload: reload, startTime: time.Now()}

	router.GET("/healthz", h.Healthz)
	router.GET("/status", h.Status)
	router.GET("/history", h.History)
	router.POST("/reload", h.Reload)

	return &Server{
		addr:   addr,
		router: router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the HTTP server until it is shut down. It returns nil on a
// clean Shutdown, or any other listen error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("api server starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("api server shutting down")
	return s.server.Shutdown(ctx)
}
