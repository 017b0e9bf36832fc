package threat

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	adomain "github.com/caremesh/sentinel/internal/audit/domain"
	bdomain "github.com/caremesh/sentinel/internal/broadcast/domain"
	"github.com/caremesh/sentinel/internal/platform/ratelimit"
	"github.com/caremesh/sentinel/internal/platform/window"
	ctrl "github.com/caremesh/sentinel/internal/threat/controller"
	"github.com/caremesh/sentinel/internal/threat/domain"
	svc "github.com/caremesh/sentinel/internal/threat/service"
)

// Registrar wires the threat and session monitor slice.
type Registrar struct {
	mon     *svc.Monitor
	ctrl    *ctrl.Controller
	limiter echo.MiddlewareFunc
}

func NewRegistrar(cfg svc.Config, sessions domain.SessionStore, counters domain.CounterStore, win window.Store, pub bdomain.Publisher, audit adomain.Recorder, log zerolog.Logger) *Registrar {
	m := svc.New(cfg, sessions, counters, win, pub, audit)
	m.SetLogger(log)
	return &Registrar{
		mon:  m,
		ctrl: ctrl.New(m),
		limiter: ratelimit.Middleware(ratelimit.Policy{
			Name:   "auth:attempts",
			Window: time.Minute,
			Limit:  120,
			Key:    ratelimit.KeyIP("attempts"),
		}),
	}
}

// SetLimiter replaces the default in-memory limiter, e.g. with a
// Redis-backed one for multi-instance deployments.
func (r *Registrar) SetLimiter(mw echo.MiddlewareFunc) { r.limiter = mw }

// Monitor exposes the monitor for embedding callers.
func (r *Registrar) Monitor() *svc.Monitor { return r.mon }

func (r *Registrar) RegisterV1(g *echo.Group) {
	r.ctrl.Register(g, r.limiter)
}
