package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/protocol"
	_ "modernc.org/sqlite"
)

// Event is one persisted timeline entry of a session.
type Event struct {
	ID        int64
	SessionID string
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}

// Session describes a recorded operator session.
type Session struct {
	SessionID string
	ActorID   string
	Privacy   string
	StartedAt time.Time
	Events    int
}

// Store keeps the session timeline in SQLite.
type Store struct {
	db    *sql.DB
	cfg   config.EventStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the event store according to config. In ephemeral mode
// nothing is written and every query returns empty.
func Open(ctx context.Context, cfg config.EventStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("event store vacuum failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("event store prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    actor_id TEXT,
    privacy_scope TEXT,
    started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload BLOB,
    created_at INTEGER NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id, id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) disabled() bool {
	return s.cfg.RetentionMode == "ephemeral" || s.db == nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Healthy pings the database; an ephemeral store is always healthy.
func (s *Store) Healthy(ctx context.Context) bool {
	if s.disabled() {
		return true
	}
	return s.db.PingContext(ctx) == nil
}

// BeginSession ensures a session row exists.
func (s *Store) BeginSession(ctx context.Context, sessionID, actorID, privacy string) error {
	if s.disabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, actor_id, privacy_scope, started_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET actor_id=excluded.actor_id, privacy_scope=excluded.privacy_scope`,
		sessionID, actorID, privacy, s.clock().UnixNano())
	return err
}

// Record persists a protocol event. Data is stored as JSON.
func (s *Store) Record(ctx context.Context, evt protocol.Event) error {
	if s.disabled() {
		return nil
	}
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", evt.Kind, err)
	}
	created := evt.Timestamp
	if created.IsZero() {
		created = s.clock()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events(session_id, kind, payload, created_at) VALUES(?, ?, ?, ?)`,
		evt.SessionID, evt.Kind, payload, created.UnixNano())
	return err
}

// Recent returns up to limit of the newest events of a session, oldest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if s.disabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, payload, created_at FROM (
		   SELECT * FROM events WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Payload, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Sessions lists recorded sessions, newest first, with their event counts.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	if s.disabled() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.session_id, s.actor_id, s.privacy_scope, s.started_at, COUNT(e.id)
		 FROM sessions s LEFT JOIN events e ON e.session_id = s.session_id
		 GROUP BY s.session_id ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.SessionID, &sess.ActorID, &sess.Privacy, &started, &sess.Events); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(0, started).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Prune applies configured retention (called on startup).
func (s *Store) Prune(ctx context.Context) (err error) {
	if s.disabled() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UnixNano()
		if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
