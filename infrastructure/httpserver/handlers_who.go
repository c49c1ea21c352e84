package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type whoResponse struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// handleWho lists the names currently held, sorted.
func (s *Server) handleWho(c echo.Context) error {
	names, err := s.relay.Who(c.Request().Context())
	if err != nil {
		s.log.Warn("Presence query failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "relay unavailable")
	}
	return c.JSON(http.StatusOK, whoResponse{Names: names, Count: len(names)})
}
