package httpserver

import (
	"chat-relay/observability"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(observability.Handler(s.gatherer)))
	}
	s.echo.GET("/stats", s.handleStats)

	// Presence
	s.echo.GET("/who", s.handleWho)

	// Chat
	s.echo.GET("/ws", s.handleWebSocket)
}
