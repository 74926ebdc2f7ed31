package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/journeywatch/internal/model"
)

//go:embed sql/*.sql
var migrationFS embed.FS

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres: dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres: ping: %w", err)
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// RunMigrations executes every embedded sql/*.sql file in name order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("store: read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFS.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("store: read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("store: exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) FindRecentUnresolved(ctx context.Context, journeyID, userID string, since time.Time) (*model.Alert, error) {
	row := p.pool.QueryRow(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE journey_id = $1 AND user_id = $2 AND status <> $3 AND created_at >= $4
        ORDER BY created_at DESC
        LIMIT 1
    `, journeyID, userID, string(model.AlertResolved), since)

	a, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find recent alert: %w", err)
	}
	return &a, nil
}

func (p *Postgres) Insert(ctx context.Context, a model.Alert) (model.Alert, error) {
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Microsecond)
	_, err := p.pool.Exec(ctx, `
        INSERT INTO alerts (`+alertColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, a.ID, a.JourneyID, a.UserID, string(a.Type), a.Message, a.Location.Lat, a.Location.Lng,
		string(a.Priority), string(a.Status), a.CreatedAt, a.ResolvedAt, a.EscalatedAt, a.AssignedTo)
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: insert alert %s: %w", a.ID, err)
	}
	return a, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (model.Alert, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	a, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return a, nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]model.Alert, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT `+alertColumns+`
        FROM alerts
        WHERE ($1 = '' OR journey_id = $1)
          AND ($2 = '' OR user_id = $2)
          AND (NOT $3 OR status <> $4)
        ORDER BY created_at DESC
        LIMIT $5
    `, f.JourneyID, f.UserID, f.ActiveOnly, string(model.AlertResolved), f.limit())
	if err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) SetStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("store: set status %s: invalid status %q", id, status)
	}
	a := model.Alert{}
	applyStatus(&a, status, at)

	tag, err := p.pool.Exec(ctx, `
        UPDATE alerts
        SET status = $1,
            resolved_at = COALESCE($2, resolved_at),
            escalated_at = COALESCE($3, escalated_at)
        WHERE id = $4
    `, string(status), a.ResolvedAt, a.EscalatedAt, id)
	if err != nil {
		return fmt.Errorf("store: set status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: set status %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanPostgres(r pgx.Row) (model.Alert, error) {
	var (
		a                 model.Alert
		typ, prio, status string
	)
	err := r.Scan(&a.ID, &a.JourneyID, &a.UserID, &typ, &a.Message, &a.Location.Lat, &a.Location.Lng,
		&prio, &status, &a.CreatedAt, &a.ResolvedAt, &a.EscalatedAt, &a.AssignedTo)
	if err != nil {
		return model.Alert{}, err
	}
	a.Type = model.AlertType(typ)
	a.Priority = model.AlertPriority(prio)
	a.Status = model.AlertStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
