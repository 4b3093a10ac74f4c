package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-market-notify/internal/domain"
)

// timestampLayout is fixed-width so that text order in the timestamp index is chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = `id, owner, message_id, type, title, body, timestamp, status, related_user, payload`

// Add stores rec in rec.Owner's inbox and returns its id. A received record whose message id is
// already stored for that owner is not inserted again: the existing id is returned with inserted=false and no event is published.
// The dedup check and the insert run in one transaction.
func (s *Store) Add(ctx context.Context, rec domain.NotificationRecord) (id int64, inserted bool, err error) {
	if !rec.Type.Valid() {
		return 0, false, fmt.Errorf("record type %q: %w", rec.Type, domain.ErrBadRequest)
	}
	if rec.Status == "" {
		rec.Status = domain.StatusUnread
	}
	if !rec.Status.Valid() {
		return 0, false, fmt.Errorf("record status %q: %w", rec.Status, domain.ErrBadRequest)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	payload, err := marshalPayload(rec.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("add notification: %w", err)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return 0, false, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("add notification: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO notifications
		(owner, message_id, type, title, body, timestamp, status, related_user, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.Owner,
		nullString(rec.MessageID),
		string(rec.Type),
		rec.Title,
		rec.Body,
		formatTimestamp(rec.Timestamp),
		string(rec.Status),
		nullString(rec.RelatedUser),
		payload,
	)
	if err != nil {
		return 0, false, fmt.Errorf("add notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("add notification: rows affected: %w", err)
	}

	if affected == 0 {
		if !rec.Deduplicated() {
			return 0, false, fmt.Errorf("add notification: insert ignored without a message id")
		}
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM notifications WHERE type = 'received' AND owner = ? AND message_id = ?`,
			rec.Owner, rec.MessageID,
		).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("add notification: lookup duplicate: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, false, fmt.Errorf("add notification: commit: %w", err)
		}
		slog.Debug("duplicate notification ignored", "message_id", rec.MessageID, "id", id)
		return id, false, nil
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("add notification: last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("add notification: commit: %w", err)
	}

	rec.ID = id
	rec.Timestamp = rec.Timestamp.UTC()
	s.publish(domain.LogAdded(rec))
	return id, true, nil
}

// Query returns up to limit records of owner's inbox with the given type, newest first.
// An empty type or domain.TypeAll disables type filtering; limit <= 0 returns everything.
// An empty owner reads the whole log.
func (s *Store) Query(ctx context.Context, owner, recordType string, limit int) ([]domain.NotificationRecord, error) {
	if recordType == domain.TypeAll {
		recordType = ""
	}
	if recordType != "" && !domain.RecordType(recordType).Valid() {
		return nil, fmt.Errorf("record type %q: %w", recordType, domain.ErrBadRequest)
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	index := "idx_notifications_timestamp"
	if owner != "" {
		index = "idx_notifications_owner_timestamp"
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM notifications INDEXED BY `+index+`
		WHERE (? = '' OR owner = ?) AND (? = '' OR type = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, owner, owner, recordType, recordType, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	records := []domain.NotificationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("query notifications: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return records, nil
}

// Get returns one record from any inbox or a domain.ErrNotFound-wrapped error.
// Callers compare Owner themselves.
func (s *Store) Get(ctx context.Context, id int64) (*domain.NotificationRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM notifications WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &rec, nil
}

// CountUnread counts owner's unread records. An empty owner counts the whole log.
func (s *Store) CountUnread(ctx context.Context, owner string) (int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE status = ? AND (? = '' OR owner = ?)`,
		string(domain.StatusUnread), owner, owner,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// UpdateStatus sets the status of one record and publishes statusUpdated.
// A missing record is logged and ignored. read -> unread is rejected.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.RecordStatus) error {
	if !status.Valid() {
		return fmt.Errorf("record status %q: %w", status, domain.ErrBadRequest)
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update status: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current, owner string
	err = tx.QueryRowContext(ctx, `SELECT status, owner FROM notifications WHERE id = ?`, id).Scan(&current, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Warn("status update for missing notification", "id", id, "status", status)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if domain.RecordStatus(current) == domain.StatusRead && status == domain.StatusUnread {
		return fmt.Errorf("notification %d: %s -> %s: %w", id, current, status, domain.ErrInvalidTransition)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notifications SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update status: commit: %w", err)
	}

	s.publish(domain.StatusUpdated(owner, domain.RecordKey(id), status))
	return nil
}

// MarkAllRead flips owner's unread records to read and publishes a single statusUpdated{all, read}.
// An empty owner marks the whole log.
func (s *Store) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET status = ? WHERE status = ? AND (? = '' OR owner = ?)`,
		string(domain.StatusRead), string(domain.StatusUnread), owner, owner,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all read: rows affected: %w", err)
	}

	s.publish(domain.StatusUpdated(owner, domain.AllRecords, domain.StatusRead))
	return n, nil
}

// Delete removes one record and publishes deleted. A missing record is logged and ignored.
func (s *Store) Delete(ctx context.Context, id int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	var owner string
	err = db.QueryRowContext(ctx, `DELETE FROM notifications WHERE id = ? RETURNING owner`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Warn("delete of missing notification", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	s.publish(domain.Deleted(owner, id))
	return nil
}

// Clear removes owner's records, or every record when owner is empty.
// No event is published; callers refresh explicitly.
func (s *Store) Clear(ctx context.Context, owner string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM notifications WHERE ? = '' OR owner = ?`, owner, owner); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.NotificationRecord, error) {
	var (
		rec                            domain.NotificationRecord
		messageID, relatedUser, payload sql.NullString
		recordType, status, ts         string
	)
	if err := row.Scan(&rec.ID, &rec.Owner, &messageID, &recordType, &rec.Title, &rec.Body, &ts, &status, &relatedUser, &payload); err != nil {
		return rec, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return rec, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	rec.Timestamp = t
	rec.MessageID = messageID.String
	rec.Type = domain.RecordType(recordType)
	rec.Status = domain.RecordStatus(status)
	rec.RelatedUser = relatedUser.String
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &rec.Payload); err != nil {
			return rec, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return rec, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func marshalPayload(p map[string]any) (sql.NullString, error) {
	if len(p) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal payload: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
