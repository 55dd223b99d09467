package webserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/truthmd/truthlink/internal/domain"
	"github.com/truthmd/truthlink/internal/session"
)

// generateSession creates a session and starts the linking attempt.
// Request JSON: { "method": "pairing"|"qr", "phoneNumber": "628123456789" }
func (s *WebServer) generateSession(c echo.Context) error {
	var payload struct {
		Method      string `json:"method"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}

	res, err := s.manager.Generate(c.Request().Context(), session.Method(payload.Method), payload.PhoneNumber)
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case err != nil:
		zap.L().Error("generate session failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "GENERATE_FAILED", "Failed to generate session", err.Error())
	}
	return ok(c, res)
}

// terminateSession force-closes a session regardless of its current state.
func (s *WebServer) terminateSession(c echo.Context) error {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", nil)
	}
	if payload.SessionID == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "sessionId is required", nil)
	}

	err := s.manager.Terminate(payload.SessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	case err != nil:
		zap.L().Error("terminate session failed", zap.String("session_id", payload.SessionID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "TERMINATE_FAILED", "Failed to terminate session", err.Error())
	}
	return ok(c, echo.Map{"sessionId": payload.SessionID, "status": session.StatusTerminated})
}

// getSession returns a snapshot of the current session record so pollers
// can resync without holding a websocket.
func (s *WebServer) getSession(c echo.Context) error {
	id := c.Param("id")
	rec, found := s.manager.Snapshot(id)
	if !found {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found", nil)
	}
	return ok(c, rec)
}

// listAttempts returns the most recent link attempt audit rows.
func (s *WebServer) listAttempts(c echo.Context) error {
	limit := cast.ToInt(c.QueryParam("limit"))
	rows, err := s.auditLog.List(limit)
	if err != nil {
		zap.L().Warn("list attempts failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list attempts", err.Error())
	}
	if rows == nil {
		rows = []domain.LinkAttempt{}
	}
	return ok(c, echo.Map{"attempts": rows})
}

func (s *WebServer) health(c echo.Context) error {
	return ok(c, echo.Map{
		"status":         "ok",
		"activeSessions": s.manager.ActiveSessions(),
	})
}
