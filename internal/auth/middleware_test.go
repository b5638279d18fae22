package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mooai/internal/logger"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func sign(secret, ts, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func setupRouter(t *testing.T) (*gin.Engine, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v, err := NewVerifier(testSecret, logger.Discard())
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}
	reached := false
	router := gin.New()
	router.POST("/hook", v.Middleware(), func(c *gin.Context) {
		reached = true
		raw, _ := RawBodyFromContext(c)
		c.String(http.StatusOK, string(raw))
	})
	return router, &reached
}

func signedRequest(body, ts, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	if ts != "" {
		req.Header.Set("X-Slack-Request-Timestamp", ts)
	}
	if sig != "" {
		req.Header.Set("X-Slack-Signature", sig)
	}
	return req
}

func TestMiddlewareAcceptsValidSignature(t *testing.T) {
	router, reached := setupRouter(t)
	body := `{"type":"event_callback"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(body, ts, sign(testSecret, ts, body)))
	if rec.Code != http.StatusOK || !*reached {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}
	if rec.Body.String() != body {
		t.Fatalf("raw body not preserved: %q", rec.Body.String())
	}
}

func TestMiddlewareRejects(t *testing.T) {
	body := `{"type":"event_callback"}`
	now := strconv.FormatInt(time.Now().Unix(), 10)
	stale := strconv.FormatInt(time.Now().Add(-400*time.Second).Unix(), 10)

	tests := []struct {
		name string
		ts   string
		sig  string
	}{
		{"wrong secret", now, sign("other-secret", now, body)},
		{"tampered body", now, sign(testSecret, now, body+" ")},
		{"stale timestamp", stale, sign(testSecret, stale, body)},
		{"missing headers", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, reached := setupRouter(t)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, signedRequest(body, tt.ts, tt.sig))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if *reached {
				t.Fatalf("handler must not run for rejected request")
			}
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier("", nil); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
