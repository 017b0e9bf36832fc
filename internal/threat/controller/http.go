package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caremesh/sentinel/internal/platform/validation"
	"github.com/caremesh/sentinel/internal/threat/domain"
	"github.com/caremesh/sentinel/internal/threat/service"
)

type Controller struct {
	mon *service.Monitor
}

func New(mon *service.Monitor) *Controller { return &Controller{mon: mon} }

// Register mounts the monitor routes under the given group. The attempts
// ingest route carries the supplied rate-limit middleware.
func (h *Controller) Register(g *echo.Group, limit ...echo.MiddlewareFunc) {
	g.POST("/auth/attempts", h.recordAttempt, limit...)
	g.GET("/actors/:id/sessions", h.listSessions)
	g.DELETE("/actors/:id/sessions", h.revokeSessions)
	g.DELETE("/actors/:id/sessions/:sid", h.revokeSession)
}

type attemptReq struct {
	Kind    string `json:"kind" validate:"required,oneof=success failure logout password-reset revocation activity"`
	ActorID string `json:"actor_id" validate:"omitempty,uuid"`
	Token   string `json:"token"`
	IP      string `json:"ip"`
	At      string `json:"at" validate:"omitempty"`
}

type attemptResp struct {
	Signals []domain.ThreatSignal `json:"signals"`
}

func (h *Controller) recordAttempt(c echo.Context) error {
	var req attemptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}

	a := domain.Attempt{
		Token:     req.Token,
		IP:        req.IP,
		UserAgent: c.Request().UserAgent(),
	}
	if a.IP == "" {
		a.IP = c.RealIP()
	}
	if req.ActorID != "" {
		id, err := uuid.Parse(req.ActorID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor_id"})
		}
		a.ActorID = &id
	}
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid at, want RFC 3339"})
		}
		a.At = t
	}

	ctx := c.Request().Context()
	switch req.Kind {
	case "failure":
		return c.JSON(http.StatusAccepted, attemptResp{Signals: nonNil(h.mon.RecordFailure(ctx, a))})
	case "success":
		if a.ActorID == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id required for success"})
		}
		return c.JSON(http.StatusAccepted, attemptResp{Signals: nonNil(h.mon.RecordSuccess(ctx, a))})
	case "activity":
		if a.ActorID == nil || a.Token == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id and token required for activity"})
		}
		h.mon.RecordActivity(ctx, *a.ActorID, a.Token, a.At)
	case "logout":
		if a.ActorID == nil || a.Token == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id and token required for logout"})
		}
		h.mon.RecordLogout(ctx, *a.ActorID, a.Token)
	case "password-reset":
		if a.ActorID == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id required for password-reset"})
		}
		n := h.mon.RecordPasswordReset(ctx, *a.ActorID)
		return c.JSON(http.StatusAccepted, map[string]any{"terminated": n, "signals": []domain.ThreatSignal{}})
	case "revocation":
		if a.ActorID == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "actor_id required for revocation"})
		}
		n, err := h.mon.RevokeSessions(ctx, *a.ActorID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "revocation failed"})
		}
		return c.JSON(http.StatusAccepted, map[string]any{"terminated": n, "signals": []domain.ThreatSignal{}})
	}
	return c.JSON(http.StatusAccepted, attemptResp{Signals: []domain.ThreatSignal{}})
}

func (h *Controller) listSessions(c echo.Context) error {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor id"})
	}
	sessions, err := h.mon.Sessions(c.Request().Context(), actorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "list sessions failed"})
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Controller) revokeSessions(c echo.Context) error {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor id"})
	}
	n, err := h.mon.RevokeSessions(c.Request().Context(), actorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "revoke sessions failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"terminated": n})
}

func (h *Controller) revokeSession(c echo.Context) error {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor id"})
	}
	sessionID, err := uuid.Parse(c.Param("sid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid session id"})
	}
	if err := h.mon.RevokeSession(c.Request().Context(), actorID, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "revoke session failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

func nonNil(s []domain.ThreatSignal) []domain.ThreatSignal {
	if s == nil {
		return []domain.ThreatSignal{}
	}
	return s
}
