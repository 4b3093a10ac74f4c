// Package notification is the receiving side of push: it normalizes incoming pushes and
// outbound logs into records of the local notification store.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/pkg/validate"
)

// Data keys a push may carry instead of a display notification.
const (
	dataTitle       = "title"
	dataBody        = "body"
	dataMessageID   = "messageId"
	dataRelatedUser = "relatedUser"
)

// Service works on one owner's inbox. An empty owner addresses the whole log and skips
// ownership checks; only operator tooling passes it.
type Service interface {
	// Receive stores an incoming push. inserted is false when the message was already stored.
	Receive(ctx context.Context, owner string, msg domain.PushMessage) (id int64, inserted bool, err error)
	LogSent(ctx context.Context, owner string, in domain.SentInput) (*domain.NotificationRecord, error)
	List(ctx context.Context, owner, recordType string, limit int) ([]domain.NotificationRecord, error)
	Get(ctx context.Context, owner string, id int64) (*domain.NotificationRecord, error)
	UnreadCount(ctx context.Context, owner string) (int, error)
	MarkRead(ctx context.Context, owner string, id int64) error
	MarkAllRead(ctx context.Context, owner string) (int64, error)
	Delete(ctx context.Context, owner string, id int64) error
	Clear(ctx context.Context, owner string) error
}

type recordStore interface {
	Add(ctx context.Context, rec domain.NotificationRecord) (int64, bool, error)
	Query(ctx context.Context, owner, recordType string, limit int) ([]domain.NotificationRecord, error)
	Get(ctx context.Context, id int64) (*domain.NotificationRecord, error)
	CountUnread(ctx context.Context, owner string) (int, error)
	UpdateStatus(ctx context.Context, id int64, status domain.RecordStatus) error
	MarkAllRead(ctx context.Context, owner string) (int64, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context, owner string) error
}

type service struct {
	store recordStore
	now   func() time.Time
}

func NewService(store recordStore) Service {
	return &service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *service) Receive(ctx context.Context, owner string, msg domain.PushMessage) (int64, bool, error) {
	rec, err := s.normalize(msg)
	if err != nil {
		return 0, false, err
	}
	rec.Owner = owner
	return s.store.Add(ctx, rec)
}

// normalize takes display text from the notification block and falls back to data fields.
// Remaining data fields become the payload.
func (s *service) normalize(msg domain.PushMessage) (domain.NotificationRecord, error) {
	rec := domain.NotificationRecord{
		MessageID: strings.TrimSpace(msg.MessageID),
		Type:      domain.RecordReceived,
		Status:    domain.StatusUnread,
		Timestamp: s.now(),
	}
	if msg.Notification != nil {
		rec.Title = msg.Notification.Title
		rec.Body = msg.Notification.Body
	}
	if rec.Title == "" {
		rec.Title = msg.Data[dataTitle]
	}
	if rec.Body == "" {
		rec.Body = msg.Data[dataBody]
	}
	if rec.Title == "" && rec.Body == "" {
		return rec, fmt.Errorf("push has neither title nor body: %w", domain.ErrBadRequest)
	}
	if rec.MessageID == "" {
		rec.MessageID = msg.Data[dataMessageID]
	}
	rec.RelatedUser = msg.Data[dataRelatedUser]
	if rec.RelatedUser == "" {
		rec.RelatedUser = msg.From
	}
	if msg.SentAt != nil && !msg.SentAt.IsZero() {
		rec.Timestamp = msg.SentAt.UTC()
	}

	for k, v := range msg.Data {
		switch k {
		case dataTitle, dataBody, dataMessageID, dataRelatedUser:
			continue
		}
		if rec.Payload == nil {
			rec.Payload = make(map[string]any, len(msg.Data))
		}
		rec.Payload[k] = v
	}
	return rec, nil
}

func (s *service) LogSent(ctx context.Context, owner string, in domain.SentInput) (*domain.NotificationRecord, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	rec := domain.NotificationRecord{
		Owner:       owner,
		Type:        domain.RecordSent,
		Title:       in.Title,
		Body:        in.Body,
		Status:      domain.StatusUnread,
		Timestamp:   s.now(),
		RelatedUser: in.RelatedUser,
		Payload:     in.Payload,
	}
	id, _, err := s.store.Add(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	return &rec, nil
}

func (s *service) List(ctx context.Context, owner, recordType string, limit int) ([]domain.NotificationRecord, error) {
	return s.store.Query(ctx, owner, recordType, limit)
}

func (s *service) Get(ctx context.Context, owner string, id int64) (*domain.NotificationRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && rec.Owner != owner {
		return nil, domain.ErrForbidden
	}
	return rec, nil
}

// authorize fails when id is another owner's record. Missing records pass
// so that the store's own missing-record handling applies.
func (s *service) authorize(ctx context.Context, owner string, id int64) error {
	if owner == "" {
		return nil
	}
	_, err := s.Get(ctx, owner, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

func (s *service) UnreadCount(ctx context.Context, owner string) (int, error) {
	return s.store.CountUnread(ctx, owner)
}

func (s *service) MarkRead(ctx context.Context, owner string, id int64) error {
	if err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	return s.store.UpdateStatus(ctx, id, domain.StatusRead)
}

func (s *service) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	return s.store.MarkAllRead(ctx, owner)
}

func (s *service) Delete(ctx context.Context, owner string, id int64) error {
	if err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *service) Clear(ctx context.Context, owner string) error {
	return s.store.Clear(ctx, owner)
}
