package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caremesh/sentinel/internal/broadcast/domain"
	dir "github.com/caremesh/sentinel/internal/directory/domain"
	"github.com/caremesh/sentinel/internal/platform/validation"
	"github.com/caremesh/sentinel/internal/transport"
)

// Dispatcher is the broadcast service surface consumed over HTTP.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) ([]domain.Target, domain.Payload)
}

type Controller struct {
	disp Dispatcher
	hub  *transport.Hub
}

func New(disp Dispatcher, hub *transport.Hub) *Controller {
	return &Controller{disp: disp, hub: hub}
}

// Register mounts event routes under the given group.
func (h *Controller) Register(g *echo.Group) {
	g.POST("/events", h.dispatch)
}

// RegisterStream mounts the SSE subscription endpoint; it is left outside
// the JWT group so browser EventSource clients can attach.
func (h *Controller) RegisterStream(e *echo.Echo) {
	e.GET("/v1/stream", h.stream)
}

type eventReq struct {
	Kind                string   `json:"kind" validate:"required"`
	AmbulanceID         string   `json:"ambulance_id,omitempty"`
	FacilityID          string   `json:"facility_id,omitempty"`
	ReferralID          *string  `json:"referral_id,omitempty"`
	ReceivingFacilityID *string  `json:"receiving_facility_id,omitempty"`
	PatientID           string   `json:"patient_id,omitempty"`
	RoomID              string   `json:"room_id,omitempty"`
	CallID              string   `json:"call_id,omitempty"`
	Participants        []string `json:"participants,omitempty"`
	TargetRoles         []string `json:"target_roles,omitempty"`
	ActorID             *string  `json:"actor_id,omitempty"`
	SourceIP            string   `json:"source_ip,omitempty"`
	Status              string   `json:"status,omitempty"`
}

type eventResp struct {
	Targets []domain.Target `json:"targets"`
	Payload domain.Payload  `json:"payload"`
}

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseIDPtr(s *string) (*uuid.UUID, bool) {
	if s == nil {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func (h *Controller) dispatch(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}

	ev := domain.Event{
		Kind:        domain.Kind(req.Kind),
		AmbulanceID: parseID(req.AmbulanceID),
		FacilityID:  parseID(req.FacilityID),
		PatientID:   parseID(req.PatientID),
		RoomID:      parseID(req.RoomID),
		CallID:      parseID(req.CallID),
		SourceIP:    req.SourceIP,
		Status:      req.Status,
	}
	var ok bool
	if ev.ReferralID, ok = parseIDPtr(req.ReferralID); !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid referral_id"})
	}
	if ev.ReceivingFacilityID, ok = parseIDPtr(req.ReceivingFacilityID); !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid receiving_facility_id"})
	}
	if ev.ActorID, ok = parseIDPtr(req.ActorID); !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid actor_id"})
	}
	for _, p := range req.Participants {
		id, err := uuid.Parse(p)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid participant id"})
		}
		ev.Participants = append(ev.Participants, id)
	}
	if req.TargetRoles != nil {
		ev.TargetRoles = make([]dir.Role, 0, len(req.TargetRoles))
		for _, r := range req.TargetRoles {
			role, ok := dir.ParseRole(r)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown target role"})
			}
			ev.TargetRoles = append(ev.TargetRoles, role)
		}
	}

	targets, payload := h.disp.Dispatch(c.Request().Context(), ev)
	if targets == nil {
		targets = []domain.Target{}
	}
	return c.JSON(http.StatusOK, eventResp{Targets: targets, Payload: payload})
}

// stream serves Server-Sent Events for one channel target.
func (h *Controller) stream(c echo.Context) error {
	kind := domain.TargetKind(c.QueryParam("kind"))
	key := c.QueryParam("key")
	switch kind {
	case domain.TargetActor, domain.TargetResource, domain.TargetRole, domain.TargetPublic:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown target kind"})
	}
	if key == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "key is required"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	ch := h.hub.Subscribe(ctx, domain.Target{Kind: kind, Key: key})

	// Initial comment establishes the stream.
	if _, err := w.Write([]byte(": stream started\n\n")); err != nil {
		return nil
	}
	w.Flush()

	for p := range ch {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return nil
		}
		if _, err := w.Write(data); err != nil {
			return nil
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}
