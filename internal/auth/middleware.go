package auth

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
)

const (
	rawBodyContextKey = "slack_raw_body"
	maxBodyBytes      = 1 << 20
)

var ErrMissingSecret = errors.New("signing secret required")

// Verifier checks the signature Slack attaches to every request.
type Verifier struct {
	secret string
	log    *slog.Logger
}

func NewVerifier(secret string, log *slog.Logger) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{secret: secret, log: log}, nil
}

// Middleware rejects requests whose signature or timestamp is invalid before
// any handler runs. The verified body is restored on the request and kept in
// the context for handlers.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		_ = c.Request.Body.Close()

		if err := v.Verify(c.Request.Header, body); err != nil {
			v.log.Warn("rejecting unsigned request", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(rawBodyContextKey, body)
		c.Next()
	}
}

// Verify checks header against body using the signing secret.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, v.secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

// RawBodyFromContext returns the body captured by Middleware.
func RawBodyFromContext(c *gin.Context) ([]byte, bool) {
	val, ok := c.Get(rawBodyContextKey)
	if !ok {
		return nil, false
	}
	body, ok := val.([]byte)
	return body, ok
}
