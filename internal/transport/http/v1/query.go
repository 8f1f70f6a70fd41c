package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// GetTranscript returns the persisted transcript of a session.
func (h *Handler) GetTranscript(c echo.Context) error {
	sessionID := c.Param("session_id")
	afterSeq := queryInt(c, "after_seq", 0)
	limit := queryInt(c, "limit", 200)

	entries, err := h.service.GetTranscript(c.Request().Context(), sessionID, afterSeq, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"entries":    entries,
	})
}

// GetEvents returns persisted notifications for replay.
func (h *Handler) GetEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	var afterSeq int64
	if v := c.QueryParam("after_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badRequest(c, "after_seq must be an integer")
		}
		afterSeq = n
	}
	var types []string
	if v := c.QueryParam("types"); v != "" {
		types = strings.Split(v, ",")
	}
	limit := queryInt(c, "limit", 200)

	events, err := h.service.GetEvents(c.Request().Context(), sessionID, afterSeq, types, limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events":     events,
	})
}

// GetHint returns the strategy hint offered to an attendee's human.
func (h *Handler) GetHint(c echo.Context) error {
	hint, err := h.service.GetHint(c.Request().Context(), c.Param("session_id"), c.Param("attendee_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, hint)
}
