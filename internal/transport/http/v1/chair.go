package v1

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// InvokeChairTool handles chair tool invocation. The body is the tool's JSON arguments.
func (h *Handler) InvokeChairTool(c echo.Context) error {
	args, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(c, "invalid request body")
	}

	resp, err := h.service.InvokeChairTool(c.Request().Context(), c.Param("session_id"), c.Param("tool_name"), args)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListTools lists the registered chair tools.
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tools": h.service.ListTools(),
	})
}
