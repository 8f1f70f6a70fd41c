// Package v1 provides the REST handlers of the caucus API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/caucus/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id/state", h.GetState)
	e.DELETE("/v1/sessions/:session_id", h.CloseSession)

	// Coordinator
	e.POST("/v1/sessions/:session_id/advance", h.Advance)
	e.POST("/v1/sessions/:session_id/human/turn", h.SubmitHumanTurn)
	e.POST("/v1/sessions/:session_id/human/vote", h.SubmitHumanVote)
	e.POST("/v1/sessions/:session_id/human/yield", h.SubmitHumanYield)

	// Chair tools
	e.POST("/v1/sessions/:session_id/chair/:tool_name", h.InvokeChairTool)
	e.GET("/v1/chair/tools", h.ListTools)

	// Read models
	e.GET("/v1/sessions/:session_id/transcript", h.GetTranscript)
	e.GET("/v1/sessions/:session_id/events", h.GetEvents)
	e.GET("/v1/sessions/:session_id/attendees/:attendee_id/hint", h.GetHint)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
