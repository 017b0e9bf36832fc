package access

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	ctrl "github.com/caremesh/sentinel/internal/access/controller"
	svc "github.com/caremesh/sentinel/internal/access/service"
	adomain "github.com/caremesh/sentinel/internal/audit/domain"
)

// Registrar wires the capability resolver slice.
type Registrar struct {
	svc  *svc.Service
	ctrl *ctrl.Controller
}

func NewRegistrar(audit adomain.Recorder, log zerolog.Logger) *Registrar {
	s := svc.New(audit)
	s.SetLogger(log)
	return &Registrar{svc: s, ctrl: ctrl.New(s)}
}

// Service exposes the resolver for embedding callers (middleware, other slices).
func (r *Registrar) Service() *svc.Service { return r.svc }

func (r *Registrar) RegisterV1(g *echo.Group) {
	r.ctrl.Register(g)
}
