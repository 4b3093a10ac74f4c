package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-market-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.StoreEvent
}

func (r *recorder) Publish(ev domain.StoreEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []domain.StoreEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StoreEvent(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewStore(filepath.Join(t.TempDir(), "notifications.db"), rec)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

func received(messageID, title string) domain.NotificationRecord {
	return domain.NotificationRecord{
		MessageID: messageID,
		Type:      domain.RecordReceived,
		Title:     title,
		Body:      title + " body",
	}
}

func TestAdd_DuplicateMessageIDIsIgnored(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	id1, inserted, err := s.Add(ctx, received("m1", "first"))
	require.NoError(t, err)
	assert.True(t, inserted)

	id2, inserted, err := s.Add(ctx, received("m1", "again"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)

	all, err := s.Query(ctx, "", domain.TypeAll, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "first", all[0].Title)
	assert.Len(t, events.all(), 1)
}

func TestAdd_SentRecordsAreNeverDeduplicated(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sent := domain.NotificationRecord{MessageID: "x", Type: domain.RecordSent, Title: "t", Body: "b"}
	_, ok1, err := s.Add(ctx, sent)
	require.NoError(t, err)
	_, ok2, err := s.Add(ctx, sent)
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.True(t, ok2)

	// empty message ids do not collide either
	_, ok3, err := s.Add(ctx, received("", "a"))
	require.NoError(t, err)
	_, ok4, err := s.Add(ctx, received("", "b"))
	require.NoError(t, err)
	assert.True(t, ok3)
	assert.True(t, ok4)

	n, err := s.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestAdd_RejectsUnknownType(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Add(context.Background(), domain.NotificationRecord{Type: "other"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestStore_ReceiveReadDeliverAgain(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	id1, _, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	_, _, err = s.Add(ctx, received("m2", "two"))
	require.NoError(t, err)

	n, err := s.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.UpdateStatus(ctx, id1, domain.StatusRead))
	n, err = s.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// redelivery of m1 changes nothing, including its read state
	again, inserted, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, again)

	got, err := s.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, got.Status)

	n, err = s.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	types := []domain.StoreEventType{}
	for _, ev := range events.all() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.StoreEventType{
		domain.EventLogAdded, domain.EventLogAdded, domain.EventStatusUpdated,
	}, types)
}

func TestMarkAllRead_PublishesOneEvent(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, _, err := s.Add(ctx, domain.NotificationRecord{Type: domain.RecordReceived, Title: "t", Body: "b"})
		require.NoError(t, err)
	}
	events.reset()

	n, err := s.MarkAllRead(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusUpdated("", domain.AllRecords, domain.StatusRead), got[0])

	unread, err := s.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestMarkAllRead_EmptyStoreStillPublishes(t *testing.T) {
	s, events := newTestStore(t)
	n, err := s.MarkAllRead(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, events.all(), 1)
}

func TestUpdateStatus_ReadToUnreadRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, domain.StatusRead))

	err = s.UpdateStatus(ctx, id, domain.StatusUnread)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, got.Status)
}

func TestUpdateStatus_MissingIDIsNoop(t *testing.T) {
	s, events := newTestStore(t)
	require.NoError(t, s.UpdateStatus(context.Background(), 999, domain.StatusRead))
	assert.Empty(t, events.all())
}

func TestDelete_PublishesOnce(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	events.reset()

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id))

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.Deleted("", id), got[0])

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuery_NewestFirstAndBounded(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"a", "b", "c", "d"} {
		typ := domain.RecordReceived
		if i%2 == 1 {
			typ = domain.RecordSent
		}
		_, _, err := s.Add(ctx, domain.NotificationRecord{
			Type: typ, Title: title, Body: title,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := s.Query(ctx, "", "", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "d", got[0].Title)
	assert.Equal(t, "c", got[1].Title)
	assert.Equal(t, "b", got[2].Title)

	sent, err := s.Query(ctx, "", string(domain.RecordSent), 0)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "d", sent[0].Title)
	assert.Equal(t, base.Add(3*time.Minute), sent[0].Timestamp)

	_, err = s.Query(ctx, "", "bogus", 0)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestQuery_SameTimestampOrderedByID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first, _, err := s.Add(ctx, domain.NotificationRecord{Type: domain.RecordSent, Title: "1", Body: "1", Timestamp: ts})
	require.NoError(t, err)
	second, _, err := s.Add(ctx, domain.NotificationRecord{Type: domain.RecordSent, Title: "2", Body: "2", Timestamp: ts})
	require.NoError(t, err)

	got, err := s.Query(ctx, "", domain.TypeAll, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)
}

func TestAdd_PayloadRoundTrips(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.Add(ctx, domain.NotificationRecord{
		Type: domain.RecordSent, Title: "t", Body: "b", RelatedUser: "u1",
		Payload: map[string]any{"orderId": "o-1"},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.RelatedUser)
	assert.Equal(t, "o-1", got.Payload["orderId"])
}

func TestAdd_ConcurrentSameMessageID(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	ids := make([]int64, n)
	var inserted atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, ok, err := s.Add(ctx, received("dup", "same"))
			assert.NoError(t, err)
			ids[i] = id
			if ok {
				inserted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, inserted.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, events.all(), 1)
}

func TestInit_ConcurrentCallersOpenOnce(t *testing.T) {
	s, _ := newTestStore(t)
	var opens atomic.Int32
	s.open = func(path string) (*sql.DB, error) {
		opens.Add(1)
		time.Sleep(20 * time.Millisecond)
		return openDB(path)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Init(context.Background()))
		}()
	}
	wg.Wait()

	// operations reuse the same connection
	_, err := s.CountUnread(context.Background(), "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, opens.Load())
}

func TestInit_FailureSurfacesAndRetries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("disk unavailable")
	s.open = func(string) (*sql.DB, error) { return nil, boom }

	_, _, err := s.Add(ctx, received("m1", "one"))
	var initErr *domain.StoreInitError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, boom)

	// without an explicit Init the failed attempt keeps being reported
	s.open = openDB
	_, err = s.CountUnread(ctx, "")
	assert.ErrorAs(t, err, &initErr)

	require.NoError(t, s.Init(ctx))
	_, inserted, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestClear_RemovesEverythingSilently(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	events.reset()

	require.NoError(t, s.Clear(ctx, ""))
	got, err := s.Query(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, events.all())
}

func TestStore_ReopensAfterClose(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, inserted, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func ownedBy(owner string, rec domain.NotificationRecord) domain.NotificationRecord {
	rec.Owner = owner
	return rec
}

func TestStore_InboxesAreScopedByOwner(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	aliceID, _, err := s.Add(ctx, ownedBy("alice", received("m1", "for alice")))
	require.NoError(t, err)
	_, _, err = s.Add(ctx, ownedBy("bob", received("m2", "for bob")))
	require.NoError(t, err)

	got, err := s.Query(ctx, "bob", domain.TypeAll, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "for bob", got[0].Title)
	assert.Equal(t, "bob", got[0].Owner)

	n, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events.reset()
	marked, err := s.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)
	assert.Equal(t, []domain.StoreEvent{domain.StatusUpdated("bob", domain.AllRecords, domain.StatusRead)}, events.all())

	alice, err := s.Get(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnread, alice.Status)

	require.NoError(t, s.Clear(ctx, "bob"))
	all, err := s.Query(ctx, "", domain.TypeAll, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, aliceID, all[0].ID)
}

func TestAdd_DedupIsPerOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, inserted, err := s.Add(ctx, ownedBy("alice", received("m1", "one")))
	require.NoError(t, err)
	assert.True(t, inserted)

	b, inserted, err := s.Add(ctx, ownedBy("bob", received("m1", "one")))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, a, b)

	again, inserted, err := s.Add(ctx, ownedBy("bob", received("m1", "one")))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, b, again)
}

func TestStore_EventsCarryOwner(t *testing.T) {
	s, events := newTestStore(t)
	ctx := context.Background()

	id, _, err := s.Add(ctx, ownedBy("alice", received("m1", "one")))
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, domain.StatusRead))
	require.NoError(t, s.Delete(ctx, id))

	got := events.all()
	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, "alice", ev.Owner, ev.Type)
	}
}

func TestApplySchema_MigratesVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", dsn(path))
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT,
			type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'unread',
			related_user TEXT,
			payload TEXT
		);
		CREATE INDEX idx_notifications_status ON notifications(status);
		CREATE UNIQUE INDEX idx_notifications_message_id ON notifications(message_id) WHERE type = 'received';
		INSERT INTO notifications (message_id, type, title, timestamp) VALUES ('m1', 'received', 'old', '2026-01-01T00:00:00.000000000Z');
		PRAGMA user_version = 1;
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s := NewStore(path, nil)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	got, err := s.Query(ctx, "", domain.TypeAll, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Title)
	assert.Empty(t, got[0].Owner)

	_, inserted, err := s.Add(ctx, ownedBy("alice", received("m1", "new")))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestPing_RetriesFailedInit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("read-only file system")
	s.open = func(string) (*sql.DB, error) { return nil, boom }

	require.ErrorIs(t, s.Init(ctx), boom)
	_, err := s.CountUnread(ctx, "")
	var initErr *domain.StoreInitError
	require.ErrorAs(t, err, &initErr)

	s.open = openDB
	require.NoError(t, s.Ping(ctx))

	_, inserted, err := s.Add(ctx, received("m1", "one"))
	require.NoError(t, err)
	assert.True(t, inserted)
}
