package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/caucus/internal/domain"
)

// statusByCode maps domain error codes to HTTP status codes. Unlisted codes are 500.
var statusByCode = map[string]int{
	"session_not_found": http.StatusNotFound,
	"unknown_tool":      http.StatusNotFound,

	"illegal_transition":      http.StatusConflict,
	"conflicting_motion":      http.StatusConflict,
	"wrong_phase":             http.StatusConflict,
	"session_suspended":       http.StatusConflict,
	"invalid_timer_operation": http.StatusConflict,
	"amendment_requires_vote": http.StatusConflict,
	"not_suspended":           http.StatusConflict,
	"unexpected_submission":   http.StatusConflict,
	"no_open_vote":            http.StatusConflict,

	"invalid_voter":      http.StatusUnprocessableEntity,
	"unknown_attendee":   http.StatusUnprocessableEntity,
	"queue_mismatch":     http.StatusUnprocessableEntity,
	"unknown_motion":     http.StatusUnprocessableEntity,
	"unknown_resolution": http.StatusUnprocessableEntity,
	"unknown_clause":     http.StatusUnprocessableEntity,
	"unknown_amendment":  http.StatusUnprocessableEntity,
	"attendee_absent":    http.StatusUnprocessableEntity,
	"invalid_argument":   http.StatusUnprocessableEntity,

	"blocked":        http.StatusForbidden,
	"hint_forbidden": http.StatusForbidden,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := statusByCode[domain.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(StatusFor(err), domain.ErrorResponse{Error: err.Error(), Code: domain.ErrorCode(err)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: msg, Code: "invalid_request"})
}
