package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification channels handled by the delivery worker.
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

// AudienceAll is the audience sentinel matching every user regardless of tier.
const AudienceAll = "all"

type NotificationStatus string

const (
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusScheduled NotificationStatus = "scheduled"
)

// NotificationRequest is the addressing payload submitted by the admin UI or
// an API client. Exactly one addressing mode is honored per request, by
// priority: job-based (JobID/JobIDs) > audience tier > explicit ToUserID.
// Title, Message, Channel, Link and Metadata are opaque to the resolver and
// copied through to each individual notification unchanged.
type NotificationRequest struct {
	JobID          string                 `json:"jobId,omitempty"`
	JobIDs         []string               `json:"jobIds,omitempty"`
	TargetAudience string                 `json:"targetAudience,omitempty"`
	ToUserID       string                 `json:"toUserId,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Channel        string                 `json:"channel,omitempty"`
	Link           string                 `json:"link,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// IndividualNotification is the queue payload produced by the fan-out: a copy
// of the request with ToUserID fixed to one resolved recipient and the job
// fields normalized (JobID is set iff exactly one job was targeted).
type IndividualNotification struct {
	ToUserID       string                 `json:"toUserId"`
	JobID          string                 `json:"jobId,omitempty"`
	JobIDs         []string               `json:"jobIds,omitempty"`
	TargetAudience string                 `json:"targetAudience,omitempty"`
	Title          string                 `json:"title,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Channel        string                 `json:"channel,omitempty"`
	Link           string                 `json:"link,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// DispatchResult reports the outcome of one fan-out. Queued is false only
// when the recipient set was empty; callers surface that as "no recipients
// found" rather than an error.
type DispatchResult struct {
	Queued     bool
	Recipients int
	Failed     int
}

// RecipientSample is the lightweight user record returned by preview.
type RecipientSample struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Tier  string    `json:"tier"`
}

// PreviewResult reports who a request would reach without enqueuing anything.
type PreviewResult struct {
	Recipients int               `json:"recipients"`
	Sample     []RecipientSample `json:"sample"`
}

// SendResponse is the wire shape of POST /notifications/send.
type SendResponse struct {
	OK         bool   `json:"ok"`
	Queued     bool   `json:"queued"`
	Recipients int    `json:"recipients"`
	Message    string `json:"message,omitempty"`
}

// NotificationLog is the delivery record written by the worker after an
// individual notification leaves the queue.
type NotificationLog struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	UserID    uuid.UUID          `json:"user_id" db:"user_id"`
	Channel   string             `json:"channel" db:"channel"`
	Subject   string             `json:"subject" db:"subject"`
	Status    NotificationStatus `json:"status" db:"status"`
	Error     *string            `json:"error,omitempty" db:"error"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}
