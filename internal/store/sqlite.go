package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/journeywatch/internal/model"
)

// Timestamps are stored as Unix microseconds so range comparisons stay numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS alerts (
    id           TEXT PRIMARY KEY,
    journey_id   TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    alert_type   TEXT NOT NULL,
    message      TEXT NOT NULL,
    lat          REAL NOT NULL,
    lng          REAL NOT NULL,
    priority     TEXT NOT NULL,
    status       TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    resolved_at  INTEGER,
    escalated_at INTEGER,
    assigned_to  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_alerts_journey_user_created
    ON alerts (journey_id, user_id, created_at DESC);
`

const alertColumns = `id, journey_id, user_id, alert_type, message, lat, lng, priority, status, created_at, resolved_at, escalated_at, assigned_to`

// SQLite is a file-backed Store using the pure-Go modernc driver.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// An empty path defaults to ~/.journeywatch/alerts.db.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("store: sqlite: %w", err)
		}
		path = filepath.Join(home, ".journeywatch", "alerts.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("store: sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: open %s: %w", path, err)
	}
	// One writer; avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: sqlite: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) FindRecentUnresolved(ctx context.Context, journeyID, userID string, since time.Time) (*model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE journey_id = ? AND user_id = ? AND status <> ? AND created_at >= ?
        ORDER BY created_at DESC
        LIMIT 1`,
		journeyID, userID, string(model.AlertResolved), since.UnixMicro())

	a, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find recent alert: %w", err)
	}
	return &a, nil
}

func (s *SQLite) Insert(ctx context.Context, a model.Alert) (model.Alert, error) {
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Microsecond)
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts (`+alertColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.JourneyID, a.UserID, string(a.Type), a.Message, a.Location.Lat, a.Location.Lng,
		string(a.Priority), string(a.Status), a.CreatedAt.UnixMicro(),
		nullMicros(a.ResolvedAt), nullMicros(a.EscalatedAt), a.AssignedTo)
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: insert alert %s: %w", a.ID, err)
	}
	return a, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (model.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]model.Alert, error) {
	var (
		where []string
		args  []any
	)
	if f.JourneyID != "" {
		where = append(where, "journey_id = ?")
		args = append(args, f.JourneyID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ActiveOnly {
		where = append(where, "status <> ?")
		args = append(args, string(model.AlertResolved))
	}

	q := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) SetStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("store: set status %s: invalid status %q", id, status)
	}
	a := model.Alert{}
	applyStatus(&a, status, at)

	res, err := s.db.ExecContext(ctx, `
        UPDATE alerts
        SET status = ?,
            resolved_at = COALESCE(?, resolved_at),
            escalated_at = COALESCE(?, escalated_at)
        WHERE id = ?`,
		string(status), nullMicros(a.ResolvedAt), nullMicros(a.EscalatedAt), id)
	if err != nil {
		return fmt.Errorf("store: set status %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: set status %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(r rowScanner) (model.Alert, error) {
	var (
		a                   model.Alert
		typ, prio, status   string
		created             int64
		resolved, escalated sql.NullInt64
	)
	err := r.Scan(&a.ID, &a.JourneyID, &a.UserID, &typ, &a.Message, &a.Location.Lat, &a.Location.Lng,
		&prio, &status, &created, &resolved, &escalated, &a.AssignedTo)
	if err != nil {
		return model.Alert{}, err
	}
	a.Type = model.AlertType(typ)
	a.Priority = model.AlertPriority(prio)
	a.Status = model.AlertStatus(status)
	a.CreatedAt = time.UnixMicro(created).UTC()
	a.ResolvedAt = fromMicros(resolved)
	a.EscalatedAt = fromMicros(escalated)
	return a, nil
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func fromMicros(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMicro(n.Int64).UTC()
	return &t
}
