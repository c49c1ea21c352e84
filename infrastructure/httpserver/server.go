// Package httpserver exposes the relay over WebSocket together with health,
// presence and metrics endpoints.
package httpserver

import (
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	WriteTimeout  time.Duration
	MaxFrameBytes int64
}

type Server struct {
	// ctx ends every WebSocket session on shutdown: hijacked connections outlive echo.Shutdown.
	ctx       context.Context
	echo      *echo.Echo
	log       *slog.Logger
	relay     services.IRelayService
	codec     *protocol.Codec
	metrics   *observability.Metrics
	gatherer  *prometheus.Registry
	clock     clockwork.Clock
	options   Options
	startTime time.Time
	upgrader  websocket.Upgrader
}

func NewServer(ctx context.Context, log *slog.Logger, relay services.IRelayService, codec *protocol.Codec,
	metrics *observability.Metrics, gatherer *prometheus.Registry, clock clockwork.Clock, options Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	s := &Server{
		ctx:       ctx,
		echo:      e,
		log:       log,
		relay:     relay,
		codec:     codec,
		metrics:   metrics,
		gatherer:  gatherer,
		clock:     clock,
		options:   options,
		startTime: clock.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browser clients are served from anywhere
			},
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.log.Info("Starting HTTP server", "addr", addr)
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
