package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/caucus/internal/domain"
)

// CreateSession handles session creation.
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	state, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, state)
}

// ListSessions lists sessions, newest first.
func (h *Handler) ListSessions(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	sessions, err := h.service.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetState returns the current snapshot of a session.
func (h *Handler) GetState(c echo.Context) error {
	state, err := h.service.GetState(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// CloseSession ends a session and returns its final snapshot.
func (h *Handler) CloseSession(c echo.Context) error {
	state, err := h.service.CloseSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
