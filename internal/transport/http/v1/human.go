package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/caucus/internal/domain"
)

// Advance runs one coordinator step.
func (h *Handler) Advance(c echo.Context) error {
	resp, err := h.service.Advance(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitHumanTurn handles the human's utterance.
func (h *Handler) SubmitHumanTurn(c echo.Context) error {
	var req domain.HumanTurnRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	state, err := h.service.SubmitHumanTurn(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// SubmitHumanVote handles the human's vote.
func (h *Handler) SubmitHumanVote(c echo.Context) error {
	var req domain.HumanVoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	state, err := h.service.SubmitHumanVote(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// SubmitHumanYield handles the human yielding the floor.
func (h *Handler) SubmitHumanYield(c echo.Context) error {
	var req domain.HumanYieldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	state, err := h.service.SubmitHumanYield(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, state)
}
