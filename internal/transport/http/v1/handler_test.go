package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/caucus/internal/config"
	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/logging"
	"github.com/xiaot623/caucus/internal/rules"
	"github.com/xiaot623/caucus/internal/service"
	"github.com/xiaot623/caucus/policy"
	"github.com/xiaot623/caucus/tests/helpers"
)

type stubProducer struct{}

func (stubProducer) ProduceTurn(_ context.Context, attendeeID string, _ domain.TurnContext) (domain.TurnOutput, error) {
	return domain.TurnOutput{UtteranceText: attendeeID + " speaks."}, nil
}

func (stubProducer) ProduceVote(_ context.Context, _ string, _ domain.TurnContext) (domain.VoteChoice, error) {
	return domain.VoteYes, nil
}

func newTestHandler(t *testing.T) *Handler {
	cfg := &config.Config{TimerTick: time.Second}
	db := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	svc := service.New(db, nil, stubProducer{}, cfg, policyEngine, rules.Default(), logging.Discard())
	return NewHandler(svc)
}

func do(t *testing.T, h echo.HandlerFunc, method, path, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func createSession(t *testing.T, h *Handler, human string) string {
	t.Helper()
	body := fmt.Sprintf(`{"attendees":[{"id":"USA","human":%t,"status":"PRESENT_AND_VOTING"},{"id":"China","status":"PRESENT_AND_VOTING"}]}`, human == "USA")
	rec := do(t, h.CreateSession, http.MethodPost, "/v1/sessions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var state domain.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state.SessionID
}

func TestCreateSessionValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h.CreateSession, http.MethodPost, "/v1/sessions", `{"attendees":[]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_argument", resp.Code)

	rec = do(t, h.CreateSession, http.MethodPost, "/v1/sessions", `{"attendees":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetStateUnknownSession(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h.GetState, http.MethodGet, "/v1/sessions/ses_missing/state", "", "session_id", "ses_missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestChairToolAndAdvance(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "")

	rec := do(t, h.InvokeChairTool, http.MethodPost, "/v1/sessions/"+id+"/chair/close_debate", "", "session_id", id, "tool_name", "close_debate")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h.InvokeChairTool, http.MethodPost, "/v1/sessions/"+id+"/chair/complete_roll_call", "", "session_id", id, "tool_name", "complete_roll_call")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tool domain.ChairToolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tool))
	assert.Equal(t, domain.PhaseGSL, tool.State.Phase)

	rec = do(t, h.InvokeChairTool, http.MethodPost, "/v1/sessions/"+id+"/chair/update_gsl", `{"action":"add","attendee_id":"China"}`, "session_id", id, "tool_name", "update_gsl")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h.Advance, http.MethodPost, "/v1/sessions/"+id+"/advance", "", "session_id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var adv domain.AdvanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adv))
	assert.Equal(t, domain.AdvanceSpoke, adv.Result.Outcome)

	rec = do(t, h.GetTranscript, http.MethodGet, "/v1/sessions/"+id+"/transcript", "", "session_id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assert.Contains(t, rec.Body.String(), "China speaks.")

	rec = do(t, h.GetEvents, http.MethodGet, "/v1/sessions/"+id+"/events?types=phase_changed", "", "session_id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assert.Contains(t, rec.Body.String(), "phase_changed")

	rec = do(t, h.InvokeChairTool, http.MethodPost, "/v1/sessions/"+id+"/chair/adjourn", "", "session_id", id, "tool_name", "adjourn")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHumanEndpointsRequireSuspension(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "USA")

	rec := do(t, h.SubmitHumanTurn, http.MethodPost, "/v1/sessions/"+id+"/human/turn", `{"content":"Hello"}`, "session_id", id)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h.GetHint, http.MethodGet, "/v1/sessions/"+id+"/attendees/China/hint", "", "session_id", id, "attendee_id", "China")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = do(t, h.GetHint, http.MethodGet, "/v1/sessions/"+id+"/attendees/USA/hint", "", "session_id", id, "attendee_id", "USA")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCloseSession(t *testing.T) {
	h := newTestHandler(t)
	id := createSession(t, h, "")

	rec := do(t, h.CloseSession, http.MethodDelete, "/v1/sessions/"+id, "", "session_id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = do(t, h.Advance, http.MethodPost, "/v1/sessions/"+id+"/advance", "", "session_id", id)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, h.GetState, http.MethodGet, "/v1/sessions/"+id+"/state", "", "session_id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, h.ListSessions, http.MethodGet, "/v1/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assert.Contains(t, rec.Body.String(), id)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: s1", domain.ErrSessionNotFound), http.StatusNotFound},
		{domain.ErrConflictingMotion, http.StatusConflict},
		{domain.ErrSessionSuspended, http.StatusConflict},
		{domain.ErrInvalidVoter, http.StatusUnprocessableEntity},
		{domain.ErrToolBlocked, http.StatusForbidden},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestListTools(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h.ListTools, http.MethodGet, "/v1/chair/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assert.Contains(t, rec.Body.String(), "set_motion")
}
