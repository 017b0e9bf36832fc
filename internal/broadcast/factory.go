package broadcast

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	adomain "github.com/caremesh/sentinel/internal/audit/domain"
	ctrl "github.com/caremesh/sentinel/internal/broadcast/controller"
	svc "github.com/caremesh/sentinel/internal/broadcast/service"
	"github.com/caremesh/sentinel/internal/transport"
)

// Registrar wires the event channel resolver slice.
type Registrar struct {
	disp *svc.Dispatcher
	ctrl *ctrl.Controller
}

func NewRegistrar(hub *transport.Hub, audit adomain.Recorder, log zerolog.Logger) *Registrar {
	res := svc.NewResolver()
	res.SetLogger(log)

	t := transport.Multi(hub, transport.NewLogger(log))
	d := svc.NewDispatcher(res, t, audit)
	d.SetLogger(log)

	return &Registrar{disp: d, ctrl: ctrl.New(d, hub)}
}

// Dispatcher exposes the publisher for other slices (threat monitor).
func (r *Registrar) Dispatcher() *svc.Dispatcher { return r.disp }

func (r *Registrar) RegisterV1(g *echo.Group) {
	r.ctrl.Register(g)
}

func (r *Registrar) RegisterStream(e *echo.Echo) {
	r.ctrl.RegisterStream(e)
}
