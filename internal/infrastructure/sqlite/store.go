// Package sqlite implements the local notification store on an embedded SQLite database.
//
// The store owns a single connection. Initialization is memoized: the first
// operation (or an explicit Init) opens the database and applies the schema,
// and every concurrent caller waits on that same attempt.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-market-notify/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - notifications table with timestamp/type/status/message_id indices
// 2 - owner column; status and message_id indices scoped by owner
const currentSchemaVersion = 2

// migrations bring a database at version i+1 to version i+2. They run before schema.sql.
var migrations = []string{
	`ALTER TABLE notifications ADD COLUMN owner TEXT NOT NULL DEFAULT '';
	DROP INDEX IF EXISTS idx_notifications_status;
	DROP INDEX IF EXISTS idx_notifications_message_id;`,
}

// Publisher receives store events after the mutation that caused them commits.
type Publisher interface {
	Publish(domain.StoreEvent)
}

// Store is the local, deduplicated notification log.
type Store struct {
	path   string
	events Publisher
	now    func() time.Time
	open   func(path string) (*sql.DB, error)

	mu      sync.Mutex
	pending *initCall
}

// initCall is one attempt at opening the database, shared by every caller that arrives while it runs.
type initCall struct {
	done chan struct{}
	db   *sql.DB
	err  error
}

func (c *initCall) failed() bool {
	select {
	case <-c.done:
		return c.err != nil
	default:
		return false
	}
}

// NewStore returns a store for the database file at path. Nothing is opened until Init or the first operation.
// events may be nil.
func NewStore(path string, events Publisher) *Store {
	return &Store{
		path:   path,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		open:   openDB,
	}
}

// Init opens the database and applies the schema. It is safe to call concurrently and repeatedly:
// callers converge on one in-flight attempt. After a failed attempt, Init starts a new one.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.await(ctx, s.begin(true))
	return err
}

// Close waits for a pending initialization and closes the connection.
// A later operation reopens the database.
func (s *Store) Close() error {
	s.mu.Lock()
	c := s.pending
	s.pending = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	<-c.done
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// begin returns the current init attempt, starting one if there is none,
// or if retry is set and the last attempt failed.
func (s *Store) begin(retry bool) *initCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil && !(retry && s.pending.failed()) {
		return s.pending
	}
	c := &initCall{done: make(chan struct{})}
	s.pending = c
	go func() {
		defer close(c.done)
		db, err := s.open(s.path)
		if err != nil {
			slog.Error("notification store init failed", "path", s.path, "err", err)
			c.err = &domain.StoreInitError{Path: s.path, Err: err}
			return
		}
		c.db = db
	}()
	return c
}

func (s *Store) await(ctx context.Context, c *initCall) (*sql.DB, error) {
	select {
	case <-c.done:
		return c.db, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// conn waits for initialization, triggering it if needed.
// A failed initialization is reported as is; only Init retries.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	return s.await(ctx, s.begin(false))
}

// Ping checks the connection. Like Init it starts a new initialization when the last one failed,
// so a readiness check brings a store back once its file is usable again.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.await(ctx, s.begin(true))
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *Store) publish(ev domain.StoreEvent) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// openDB opens the file and brings the schema to the current version.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time; a single shared connection
	// also serializes the dedup transaction in Add.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

// applySchema creates tables and indices if they don't exist and records the schema version.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	// Version 0 is a fresh file; schema.sql creates everything.
	for v := version; v > 0 && v < currentSchemaVersion; v++ {
		if _, err := db.Exec(migrations[v-1]); err != nil {
			return fmt.Errorf("migrate schema to version %d: %w", v+1, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
