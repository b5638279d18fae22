package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack/slackevents"

	"mooai/internal/auth"
	"mooai/internal/events"
	"mooai/internal/metrics"
	"mooai/internal/models"
	"mooai/internal/worker"
)

const retryNumHeader = "X-Slack-Retry-Num"

// Dispatcher runs the handler matching an event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) (string, error)
}

// Scheduler runs work after the response has been sent.
type Scheduler interface {
	WaitUntil(task worker.Task) error
}

// Recorder keeps track of deliveries.
type Recorder interface {
	Record(ctx context.Context, d models.Delivery) (int64, error)
}

// Handler wires the Slack webhooks to the assistant service.
type Handler struct {
	assistant Dispatcher
	verifier  *auth.Verifier
	runner    Scheduler
	ledger    Recorder
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewHandler constructs a Handler instance. runner and ledger may be nil, in
// which case deliveries are not recorded.
func NewHandler(assistant Dispatcher, verifier *auth.Verifier, runner Scheduler, ledger Recorder, m *metrics.Metrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		assistant: assistant,
		verifier:  verifier,
		runner:    runner,
		ledger:    ledger,
		metrics:   m,
		log:       log,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	slackRoutes := router.Group("/api/slack")
	slackRoutes.Use(h.verifier.Middleware())
	slackRoutes.POST("", h.handleAny)
	slackRoutes.POST("/events", h.handleEvents)
	slackRoutes.POST("/commands", h.handleCommand)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAny serves both payload styles from one URL; slash commands are form
// encoded, everything else is JSON.
func (h *Handler) handleAny(c *gin.Context) {
	if c.ContentType() == gin.MIMEPOSTForm {
		h.handleCommand(c)
		return
	}
	h.handleEvents(c)
}

func (h *Handler) handleEvents(c *gin.Context) {
	received := time.Now()
	body, ok := auth.RawBodyFromContext(c)
	if !ok {
		var err error
		if body, err = io.ReadAll(c.Request.Body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
	}

	env, err := events.Parse(body)
	if err != nil {
		h.log.Warn("invalid event payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if env.Type == slackevents.URLVerification {
		c.JSON(http.StatusOK, gin.H{"challenge": env.Challenge})
		return
	}

	kind := env.InnerType
	if kind == "" {
		kind = env.Type
	}
	if env.Event == nil {
		h.log.Debug("ignoring event", "type", env.Type, "inner_type", env.InnerType, "event_id", env.EventID)
		h.recordDelivery(c, env.EventID, kind, "", models.OutcomeIgnored, received)
		c.Status(http.StatusOK)
		return
	}

	if _, err := h.assistant.Dispatch(c.Request.Context(), env.Event); err != nil {
		h.log.Error("event handling failed",
			"event_id", env.EventID,
			"kind", kind,
			"channel", env.Event.Channel(),
			"error", err,
		)
		h.recordDelivery(c, env.EventID, kind, env.Event.Channel(), models.OutcomeFailed, received)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
		return
	}
	h.recordDelivery(c, env.EventID, kind, env.Event.Channel(), models.OutcomeHandled, received)
	c.Status(http.StatusOK)
}

func (h *Handler) handleCommand(c *gin.Context) {
	received := time.Now()
	cmd, err := events.ParseCommand(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slash command"})
		return
	}

	reply, err := h.assistant.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		h.log.Error("command handling failed", "command", cmd.Command, "error", err)
		h.recordDelivery(c, "", cmd.Kind(), cmd.ChannelID, models.OutcomeFailed, received)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "command handling failed"})
		return
	}
	if reply == "" {
		h.recordDelivery(c, "", cmd.Kind(), cmd.ChannelID, models.OutcomeIgnored, received)
		c.Status(http.StatusOK)
		return
	}
	h.recordDelivery(c, "", cmd.Kind(), cmd.ChannelID, models.OutcomeHandled, received)
	c.String(http.StatusOK, reply)
}

// recordDelivery hands the bookkeeping to the runner so it never delays the
// response.
func (h *Handler) recordDelivery(c *gin.Context, eventID, kind, key string, outcome models.Outcome, received time.Time) {
	h.metrics.ObserveDelivery(kind, string(outcome))
	if h.runner == nil || h.ledger == nil {
		return
	}
	retryNum, _ := strconv.Atoi(c.GetHeader(retryNumHeader))
	d := models.Delivery{
		EventID:    eventID,
		Kind:       kind,
		RetryNum:   retryNum,
		Outcome:    outcome,
		ReceivedAt: received,
		Duration:   time.Since(received),
	}
	err := h.runner.WaitUntil(worker.Task{
		Key:  key,
		Name: "record_delivery",
		Run: func(ctx context.Context) error {
			_, err := h.ledger.Record(ctx, d)
			return err
		},
	})
	if err != nil {
		h.log.Warn("delivery not recorded", "event_id", eventID, "kind", kind, "error", err)
	}
}
