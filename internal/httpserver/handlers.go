package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go/twiml"

	"github.com/chadiek/shorecall/internal/audio"
	"github.com/chadiek/shorecall/internal/call"
	"github.com/chadiek/shorecall/internal/events"
	"github.com/chadiek/shorecall/internal/session"
)

// Handlers wires HTTP routes to the call coordinator.
type Handlers struct {
	coordinator *call.Coordinator
	audio       *audio.Cache
	bus         *events.Bus
	dialer      Dialer
	validate    *validator.Validate
	log         *logrus.Logger
}

func NewHandlers(deps Deps) Handlers {
	return Handlers{
		coordinator: deps.Coordinator,
		audio:       deps.Audio,
		bus:         deps.Bus,
		dialer:      deps.Dialer,
		validate:    validator.New(),
		log:         deps.Log,
	}
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/calls", h.createCall)
	e.POST("/twilio/voice", h.voice)
	e.POST("/twilio/gather", h.gather)
	e.POST("/twilio/status", h.callStatus)
	e.GET("/audio/:id", h.audioByID)
	e.GET("/events/:id", h.eventStream)
}

type createCallRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	Name        string `json:"name" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Notes       string `json:"notes"`
	TargetDate  string `json:"target_date"`
}

type createCallResponse struct {
	SessionID string `json:"session_id"`
	CallSID   string `json:"call_sid"`
	Greeting  string `json:"greeting"`
}

// createCall registers a session and dials the site contact.
func (h Handlers) createCall(c echo.Context) error {
	var req createCallRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	op := session.Operation{
		Name:       req.Name,
		Location:   req.Location,
		Priority:   req.Priority,
		Notes:      req.Notes,
		TargetDate: req.TargetDate,
	}
	sessionID, greeting, _ := h.coordinator.StartSession(c.Request().Context(), op)

	callSID := ""
	if h.dialer != nil {
		sid, err := h.dialer.PlaceCall(req.PhoneNumber, sessionID)
		if err != nil {
			h.log.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Error("failed to place call")
			h.coordinator.AbortSession(sessionID)
			return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to place call"})
		}
		callSID = sid
	}

	return c.JSON(http.StatusCreated, createCallResponse{SessionID: sessionID, CallSID: callSID, Greeting: greeting})
}

// voice answers Twilio's webhook when the outbound call connects: play the
// greeting (or fall back to the carrier voice) and gather the first reply.
func (h Handlers) voice(c echo.Context) error {
	sessionID := c.QueryParam("session")

	greeting, ok := h.coordinator.GreetingText(sessionID)
	if !ok {
		return h.terminalTwiML(c, "Sorry, we could not find this call. Goodbye.")
	}

	elements := []twiml.Element{h.speakElement(c, "greeting-"+sessionID, greeting)}
	elements = append(elements, h.gatherElement(c, sessionID))
	return h.respondTwiML(c, elements)
}

// gather handles each speech result: run one protocol turn, speak the reply,
// then hang up or gather again.
func (h Handlers) gather(c echo.Context) error {
	sessionID := c.QueryParam("session")
	params, _ := c.Get("twilioParams").(map[string]string)
	speech := strings.TrimSpace(params["SpeechResult"])

	if speech == "" {
		elements := []twiml.Element{
			&twiml.VoiceSay{Message: "Sorry, I didn't catch that. Could you say it again?"},
			h.gatherElement(c, sessionID),
		}
		return h.respondTwiML(c, elements)
	}

	result, err := h.coordinator.ProcessUtterance(c.Request().Context(), sessionID, speech)
	if err != nil {
		if errors.Is(err, call.ErrSessionNotFound) {
			return h.terminalTwiML(c, "Sorry, this call has already ended. Thank you, goodbye.")
		}
		h.log.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Error("process utterance failed")
		return h.terminalTwiML(c, "Sorry, something went wrong on our end. We'll call back another time. Goodbye.")
	}

	elements := []twiml.Element{h.speakElement(c, result.AudioID, result.Text)}
	if result.Finished {
		elements = append(elements, &twiml.VoiceHangup{})
	} else {
		elements = append(elements, h.gatherElement(c, sessionID))
	}
	return h.respondTwiML(c, elements)
}

// callStatus aborts the session when the provider reports the call ended
// before a natural conclusion.
func (h Handlers) callStatus(c echo.Context) error {
	sessionID := c.QueryParam("session")
	params, _ := c.Get("twilioParams").(map[string]string)

	switch params["CallStatus"] {
	case "completed", "busy", "failed", "no-answer", "canceled":
		h.coordinator.AbortSession(sessionID)
	}
	return c.String(http.StatusOK, "OK")
}

// audioByID serves cached synthesized audio. Absent and empty entries are both
// 404: the caller falls back to text either way.
func (h Handlers) audioByID(c echo.Context) error {
	id := c.Param("id")
	if !h.audio.HasValidAudio(id) {
		return c.NoContent(http.StatusNotFound)
	}
	data, _ := h.audio.Get(id)
	return c.Blob(http.StatusOK, "audio/mpeg", data)
}

// eventStream is a pass-through SSE feed of a session's transcript events.
func (h Handlers) eventStream(c echo.Context) error {
	sessionID := c.Param("id")
	ch, cancel := h.bus.Subscribe(sessionID)
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			w.Flush()
			if ev.Type == events.TypeCompleted {
				return nil
			}
		}
	}
}

// speakElement prefers cached synthesized audio and falls back to the carrier
// voice when the cache holds the empty sentinel (or nothing at all).
func (h Handlers) speakElement(c echo.Context, audioID, text string) twiml.Element {
	if h.audio.HasValidAudio(audioID) {
		return &twiml.VoicePlay{Url: absoluteURL(c, "/audio/"+audioID)}
	}
	return &twiml.VoiceSay{Message: text}
}

func (h Handlers) gatherElement(c echo.Context, sessionID string) twiml.Element {
	q := url.Values{}
	q.Set("session", sessionID)
	return &twiml.VoiceGather{
		Input:               "speech",
		Action:              "/twilio/gather?" + q.Encode(),
		Method:              "POST",
		SpeechTimeout:       "auto",
		SpeechModel:         "phone_call",
		ActionOnEmptyResult: "true",
	}
}

func (h Handlers) respondTwiML(c echo.Context, elements []twiml.Element) error {
	response, err := twiml.Voice(elements)
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

func (h Handlers) terminalTwiML(c echo.Context, message string) error {
	return h.respondTwiML(c, []twiml.Element{
		&twiml.VoiceSay{Message: message},
		&twiml.VoiceHangup{},
	})
}

// absoluteURL builds a public URL for TwiML callbacks.
// Priority: X-Forwarded-* headers, then the request host.
func absoluteURL(c echo.Context, path string) string {
	proto := c.Request().Header.Get("X-Forwarded-Proto")
	host := c.Request().Header.Get("X-Forwarded-Host")
	if proto == "" || host == "" {
		host = c.Request().Host
		proto = "https"
		if strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1:") {
			proto = "http"
		}
	}
	return fmt.Sprintf("%s://%s%s", proto, host, path)
}
