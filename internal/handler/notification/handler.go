package notification

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jobintel/notify-api/internal/email"
	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/internal/repository"
	"github.com/jobintel/notify-api/internal/service/notifier"
	apperrors "github.com/jobintel/notify-api/pkg/errors"
	"github.com/jobintel/notify-api/pkg/httputil"
	"github.com/jobintel/notify-api/pkg/messaging"
)

const (
	recentLogLimit    = 20
	recentLogCacheKey = "recent_notifications"
	streamPingPeriod  = 15 * time.Second
)

// Channels the SSE relay forwards to connected admin dashboards.
var realtimeChannels = []string{
	"realtime:notifications",
	"realtime:applications",
	"realtime:users",
}

type Handler struct {
	service  notifier.Service
	logs     repository.NotificationLogRepository
	emailSvc email.Service
	broker   messaging.Broker
	cache    *gocache.Cache
}

// NewHandler wires the notification endpoints. broker may be nil when Redis
// is not configured; the SSE stream then degrades to keepalive pings.
func NewHandler(service notifier.Service, logs repository.NotificationLogRepository, emailSvc email.Service, broker messaging.Broker) *Handler {
	return &Handler{
		service:  service,
		logs:     logs,
		emailSvc: emailSvc,
		broker:   broker,
		cache:    gocache.New(10*time.Second, time.Minute),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("/send", h.Send)
		notifications.POST("/preview", h.Preview)
		notifications.GET("/stream", h.Stream)
	}
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	admin := r.Group("/notifications")
	{
		admin.GET("", h.ListRecent)
		admin.POST("/test-email", h.TestEmail)
		admin.POST("/verify-smtp", h.VerifySMTP)
	}
}

func (h *Handler) Send(c *gin.Context) {
	var req model.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(bindingErrorMessage(err), err))
		return
	}

	result, err := h.service.Send(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	resp := model.SendResponse{
		OK:         true,
		Queued:     result.Queued,
		Recipients: result.Recipients,
	}
	if !result.Queued {
		resp.Message = notifier.ZeroRecipientMessage(result.Mode)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Preview(c *gin.Context) {
	var req model.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(bindingErrorMessage(err), err))
		return
	}

	result, err := h.service.Preview(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stream relays realtime events to the admin dashboard over Server-Sent
// Events. Without a broker the connection is kept alive with comment pings.
func (h *Handler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	ctx := c.Request.Context()

	var events <-chan []byte
	if h.broker != nil {
		merged := make(chan []byte, 100)
		for _, channel := range realtimeChannels {
			sub, err := h.broker.Subscribe(ctx, channel)
			if err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("failed to subscribe for SSE stream")
				continue
			}
			go func(sub <-chan []byte) {
				for msg := range sub {
					select {
					case merged <- msg:
					case <-ctx.Done():
						return
					}
				}
			}(sub)
		}
		events = merged
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
			c.Writer.Flush()
		case <-ping.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func (h *Handler) ListRecent(c *gin.Context) {
	if cached, ok := h.cache.Get(recentLogCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	logs, err := h.logs.ListRecent(c.Request.Context(), recentLogLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []*model.NotificationLog{}
	}

	h.cache.SetDefault(recentLogCacheKey, logs)
	c.JSON(http.StatusOK, logs)
}

type testEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message"`
}

var validationMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
}

// bindingErrorMessage flattens validator field errors into one readable line.
func bindingErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := validationMessages[fe.Tag()]
		if msg == "" {
			msg = "is invalid"
		}
		parts = append(parts, strings.ToLower(fe.Field())+" "+msg)
	}
	return strings.Join(parts, ", ")
}

func (h *Handler) TestEmail(c *gin.Context) {
	var req testEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(bindingErrorMessage(err), err))
		return
	}

	message := req.Message
	if message == "" {
		message = "Test message from JobIntel"
	}

	if err := h.emailSvc.SendCustom(c.Request.Context(), req.To, req.Subject, message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Test email sent"})
}

func (h *Handler) VerifySMTP(c *gin.Context) {
	if err := h.emailSvc.Verify(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "verified": true})
}
