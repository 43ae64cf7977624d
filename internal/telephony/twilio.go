package telephony

import (
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Config holds the Twilio credentials and the caller id for outbound calls.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL is the public base URL Twilio calls back into, e.g. an ngrok or
	// production host. Webhook paths are appended to it.
	BaseURL string
}

// Service places outbound calls through the Twilio REST API.
type Service struct {
	config Config
	client *twilio.RestClient
	log    *logrus.Logger
}

func New(config Config, log *logrus.Logger) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &Service{config: config, client: client, log: log}
}

// PlaceCall dials the contact and points the call at the session's voice
// webhook. Status callbacks report disconnects so the session can be aborted.
func (s *Service) PlaceCall(to, sessionID string) (string, error) {
	if s.config.AccountSID == "" || s.config.AuthToken == "" {
		return "", fmt.Errorf("missing Twilio credentials: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN required")
	}
	if s.config.FromNumber == "" {
		return "", fmt.Errorf("missing TWILIO_FROM_NUMBER")
	}

	q := url.Values{}
	q.Set("session", sessionID)

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(s.config.FromNumber)
	params.SetUrl(fmt.Sprintf("%s/twilio/voice?%s", s.config.BaseURL, q.Encode()))
	params.SetMethod("POST")
	params.SetStatusCallback(fmt.Sprintf("%s/twilio/status?%s", s.config.BaseURL, q.Encode()))
	params.SetStatusCallbackMethod("POST")
	params.SetStatusCallbackEvent([]string{"completed", "busy", "failed", "no-answer", "canceled"})

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to place call: %w", err)
	}

	callSID := ""
	if resp != nil && resp.Sid != nil {
		callSID = *resp.Sid
	}
	s.log.WithFields(logrus.Fields{"session_id": sessionID, "call_sid": callSID, "to": to}).
		Info("outbound call placed")
	return callSID, nil
}
