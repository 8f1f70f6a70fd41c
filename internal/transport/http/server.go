// Package http provides the HTTP server for the caucus service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xiaot623/caucus/internal/service"
	v1 "github.com/xiaot623/caucus/internal/transport/http/v1"
	"github.com/xiaot623/caucus/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the REST API and the
// per-session websocket endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/v1/sessions/:session_id/ws", wsServer.HandleWebSocket)
	}

	return e
}
