package httpserver

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/chadiek/shorecall/internal/audio"
	"github.com/chadiek/shorecall/internal/call"
	"github.com/chadiek/shorecall/internal/events"
	"github.com/chadiek/shorecall/internal/middleware"
)

// Dialer places an outbound call for a session.
type Dialer interface {
	PlaceCall(to, sessionID string) (string, error)
}

// Deps are the collaborators the HTTP layer exposes.
type Deps struct {
	Coordinator     *call.Coordinator
	Audio           *audio.Cache
	Bus             *events.Bus
	Dialer          Dialer
	TwilioAuthToken string
	Log             *logrus.Logger
}

// New builds a configured Echo server with all routes registered.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.TwilioAuth(func() string { return deps.TwilioAuthToken }))

	h := NewHandlers(deps)
	h.Register(e)
	return e
}
