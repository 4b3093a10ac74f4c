package domain

import "time"

// RecordType tells whether a notification was pushed to this client or logged as sent from it.
type RecordType string

const (
	RecordSent     RecordType = "sent"
	RecordReceived RecordType = "received"
)

// RecordStatus is the read state of a stored notification.
type RecordStatus string

const (
	StatusUnread RecordStatus = "unread"
	StatusRead   RecordStatus = "read"
)

// TypeAll disables type filtering in store queries.
const TypeAll = "all"

func (t RecordType) Valid() bool { return t == RecordSent || t == RecordReceived }

func (s RecordStatus) Valid() bool { return s == StatusUnread || s == StatusRead }

// NotificationRecord is one row of the local notification log.
// Owner is the user whose inbox holds the record.
type NotificationRecord struct {
	ID          int64          `json:"id"`
	Owner       string         `json:"owner,omitempty"`
	MessageID   string         `json:"message_id,omitempty"`
	Type        RecordType     `json:"type"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Timestamp   time.Time      `json:"timestamp"`
	Status      RecordStatus   `json:"status"`
	RelatedUser string         `json:"related_user,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Deduplicated reports whether the record takes part in message-id dedup.
func (r NotificationRecord) Deduplicated() bool {
	return r.Type == RecordReceived && r.MessageID != ""
}

// PushMessage is an incoming push as delivered to the client, before normalization.
type PushMessage struct {
	MessageID    string            `json:"message_id"`
	From         string            `json:"from"`
	Notification *PushNotification `json:"notification"`
	Data         map[string]string `json:"data"`
	SentAt       *time.Time        `json:"sent_at"`
}

// PushNotification is the display part of a push message.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SentInput is the body of a request logging an outbound notification.
type SentInput struct {
	Title       string         `json:"title" validate:"required"`
	Body        string         `json:"body" validate:"required"`
	RelatedUser string         `json:"related_user"`
	Payload     map[string]any `json:"payload"`
}
