package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func sign(token, fullURL string, form url.Values) string {
	data := fullURL
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newProtectedEcho(token string) *echo.Echo {
	e := echo.New()
	e.Use(TwilioAuth(func() string { return token }))
	e.POST("/twilio/gather", func(c echo.Context) error {
		params, _ := c.Get("twilioParams").(map[string]string)
		return c.String(http.StatusOK, params["SpeechResult"])
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func TestTwilioAuth_ValidSignature(t *testing.T) {
	e := newProtectedEcho("secret")
	form := url.Values{"SpeechResult": {"hello there"}, "CallSid": {"CA1"}}
	path := "/twilio/gather?session=abc"

	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	r.Header.Set("X-Twilio-Signature", sign("secret", "https://example.com"+path, form))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "hello there" {
		t.Fatalf("handler did not receive parsed params: %q", w.Body.String())
	}
}

func TestTwilioAuth_QueryStringIsSigned(t *testing.T) {
	e := newProtectedEcho("secret")
	form := url.Values{"SpeechResult": {"hi"}}

	// Signature computed without the query string must not validate.
	r := httptest.NewRequest(http.MethodPost, "/twilio/gather?session=abc", strings.NewReader(form.Encode()))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	r.Header.Set("X-Twilio-Signature", sign("secret", "https://example.com/twilio/gather", form))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTwilioAuth_RejectsMissingAndWrongSignature(t *testing.T) {
	e := newProtectedEcho("secret")
	for _, sig := range []string{"", "bogus", sign("other-token", "https://example.com/twilio/gather", nil)} {
		r := httptest.NewRequest(http.MethodPost, "/twilio/gather", nil)
		if sig != "" {
			r.Header.Set("X-Twilio-Signature", sig)
		}
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("sig %q: expected 401, got %d", sig, w.Code)
		}
	}
}

func TestTwilioAuth_SkipsNonTwilioPaths(t *testing.T) {
	e := newProtectedEcho("secret")
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected passthrough 200, got %d", w.Code)
	}
}

func TestTwilioAuth_NoTokenConfigured(t *testing.T) {
	e := newProtectedEcho("")
	r := httptest.NewRequest(http.MethodPost, "/twilio/gather", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when token unset, got %d", w.Code)
	}
}
