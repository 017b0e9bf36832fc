package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caremesh/sentinel/internal/access/domain"
	dir "github.com/caremesh/sentinel/internal/directory/domain"
	"github.com/caremesh/sentinel/internal/platform/validation"
)

// Service is the access service surface consumed over HTTP.
type Service interface {
	Authorize(ctx context.Context, in domain.Input) (domain.Decision, error)
	Capabilities(ctx context.Context) []string
}

type Controller struct {
	svc Service
}

func New(svc Service) *Controller { return &Controller{svc: svc} }

// Register mounts access routes under the given group.
func (h *Controller) Register(g *echo.Group) {
	g.POST("/access/authorize", h.authorize)
	g.GET("/access/capabilities", h.capabilities)
}

type authorizeReq struct {
	ActorID    string        `json:"actor_id" validate:"required,uuid"`
	Role       string        `json:"role" validate:"required"`
	Capability string        `json:"capability" validate:"required"`
	Resource   *resourceBody `json:"resource,omitempty"`
}

type resourceBody struct {
	Kind         string `json:"kind" validate:"required"`
	OwnerActorID string `json:"owner_actor_id" validate:"required,uuid"`
}

type authorizeResp struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func (h *Controller) authorize(c echo.Context) error {
	var req authorizeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor_id"})
	}
	role, ok := dir.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown role"})
	}

	in := domain.Input{ActorID: actorID, Role: role, Capability: req.Capability}
	if req.Resource != nil {
		ownerID, err := uuid.Parse(req.Resource.OwnerActorID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid resource owner_actor_id"})
		}
		in.Resource = &domain.Resource{Kind: req.Resource.Kind, OwnerActorID: ownerID}
	}

	dec, err := h.svc.Authorize(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCapability) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "authorize failed"})
	}
	return c.JSON(http.StatusOK, authorizeResp{Allowed: dec.Allowed, Reason: dec.Reason})
}

func (h *Controller) capabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"capabilities": h.svc.Capabilities(c.Request().Context())})
}
