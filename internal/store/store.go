// Package store provides the alert persistence backends: in-memory, SQLite,
// PostgreSQL and Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/journeywatch/internal/model"
)

// ErrNotFound is returned when an alert ID does not exist.
var ErrNotFound = errors.New("alert not found")

// Store is the alert persistence contract shared by every backend.
type Store interface {
	// FindRecentUnresolved returns the newest alert for the journey and user
	// that is not resolved and was created at or after since. It returns
	// (nil, nil) when no such alert exists.
	FindRecentUnresolved(ctx context.Context, journeyID, userID string, since time.Time) (*model.Alert, error)
	Insert(ctx context.Context, a model.Alert) (model.Alert, error)
	Get(ctx context.Context, id string) (model.Alert, error)
	List(ctx context.Context, f Filter) ([]model.Alert, error)
	// SetStatus moves an alert to status, stamping resolved_at or
	// escalated_at with at where applicable.
	SetStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) error
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	JourneyID  string
	UserID     string
	ActiveOnly bool
	Limit      int
}

// DefaultListLimit caps List when Filter.Limit is unset or out of range.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 500 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) match(a *model.Alert) bool {
	if f.JourneyID != "" && a.JourneyID != f.JourneyID {
		return false
	}
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.ActiveOnly && !a.Unresolved() {
		return false
	}
	return true
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

func validStatus(s model.AlertStatus) bool {
	switch s {
	case model.AlertActive, model.AlertResolved, model.AlertEscalated:
		return true
	}
	return false
}

// applyStatus mutates a in place the same way for every backend.
func applyStatus(a *model.Alert, status model.AlertStatus, at time.Time) {
	a.Status = status
	at = at.UTC()
	switch status {
	case model.AlertResolved:
		a.ResolvedAt = &at
	case model.AlertEscalated:
		a.EscalatedAt = &at
	}
}
