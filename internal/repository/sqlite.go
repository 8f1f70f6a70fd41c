package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/caucus/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			closed_at DATETIME,
			snapshot TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq)`,
		`CREATE TABLE IF NOT EXISTS transcript (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			attendee_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			phase TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			session_id TEXT NOT NULL,
			motion_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			attendee_id TEXT NOT NULL,
			choice TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, motion_id, round, attendee_id),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Add new columns for existing DBs (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("sessions", "closed_at", "ALTER TABLE sessions ADD COLUMN closed_at DATETIME"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, phase, version, created_at, updated_at, snapshot) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Phase, rec.Version, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), nullStringBytes(rec.Snapshot))
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var closedAt sql.NullTime
	var snapshot sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, phase, version, created_at, updated_at, closed_at, snapshot FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&rec.SessionID, &rec.Phase, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &closedAt, &snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		rec.ClosedAt = &t
	}
	if snapshot.Valid {
		rec.Snapshot = json.RawMessage(snapshot.String)
	}
	return &rec, nil
}

// ListSessions returns the most recently created sessions, without snapshots.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	query := `SELECT session_id, phase, version, created_at, updated_at, closed_at FROM sessions ORDER BY created_at DESC, session_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var closedAt sql.NullTime
		if err := rows.Scan(&rec.SessionID, &rec.Phase, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt, &closedAt); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			t := closedAt.Time
			rec.ClosedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSnapshot stores the latest snapshot. Older versions never overwrite newer ones.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sessionID string, phase domain.Phase, version int64, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET phase = ?, version = ?, snapshot = ?, updated_at = ? WHERE session_id = ? AND version <= ?`,
		phase, version, nullStringBytes(snapshot), time.Now().UTC(), sessionID, version)
	return err
}

// CloseSession marks a session closed.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string, closedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET closed_at = ?, updated_at = ? WHERE session_id = ? AND closed_at IS NULL`,
		closedAt.UTC(), closedAt.UTC(), sessionID)
	return err
}

// CreateEvent records an event. Replays of the same event id are ignored.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, session_id, seq, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		event.EventID, event.SessionID, event.Seq, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a session after a sequence number.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterSeq int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, seq, ts, type, payload FROM events WHERE session_id = ?`
	args := []interface{}{sessionID}

	if afterSeq > 0 {
		query += ` AND seq > ?`
		args = append(args, afterSeq)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SessionID, &event.Seq, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// AppendTranscript records a transcript entry. Entries are keyed by sequence, so replays are ignored.
func (s *SQLiteStore) AppendTranscript(ctx context.Context, sessionID string, entry domain.TranscriptEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO transcript (session_id, seq, attendee_id, kind, text, phase, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, entry.Seq, entry.AttendeeID, entry.Kind, entry.Text, entry.Phase, entry.At.UTC())
	return err
}

// GetTranscript returns transcript entries in order.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string, afterSeq int, limit int) ([]domain.TranscriptEntry, error) {
	query := `SELECT seq, attendee_id, kind, text, phase, created_at FROM transcript WHERE session_id = ? AND seq > ? ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, sessionID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TranscriptEntry
	for rows.Next() {
		var e domain.TranscriptEntry
		if err := rows.Scan(&e.Seq, &e.AttendeeID, &e.Kind, &e.Text, &e.Phase, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertVote records a vote, replacing an earlier vote by the same attendee in the same round.
func (s *SQLiteStore) UpsertVote(ctx context.Context, vote *domain.VoteRow) error {
	if vote.UpdatedAt.IsZero() {
		vote.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (session_id, motion_id, round, attendee_id, choice, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, motion_id, round, attendee_id) DO UPDATE SET choice = excluded.choice, updated_at = excluded.updated_at`,
		vote.SessionID, vote.MotionID, vote.Round, vote.AttendeeID, vote.Choice, vote.UpdatedAt.UTC())
	return err
}

// DeleteVote removes a struck vote. Deleting a missing vote is not an error.
func (s *SQLiteStore) DeleteVote(ctx context.Context, sessionID, motionID string, round int, attendeeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM votes WHERE session_id = ? AND motion_id = ? AND round = ? AND attendee_id = ?`,
		sessionID, motionID, round, attendeeID)
	return err
}

// ListVotes returns the votes cast on a motion, latest round last.
func (s *SQLiteStore) ListVotes(ctx context.Context, sessionID, motionID string) ([]domain.VoteRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, motion_id, round, attendee_id, choice, updated_at FROM votes WHERE session_id = ? AND motion_id = ? ORDER BY round ASC, attendee_id ASC`,
		sessionID, motionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VoteRow
	for rows.Next() {
		var v domain.VoteRow
		if err := rows.Scan(&v.SessionID, &v.MotionID, &v.Round, &v.AttendeeID, &v.Choice, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
