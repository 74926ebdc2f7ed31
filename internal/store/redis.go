package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/journeywatch/internal/model"
)

// Redis stores each alert as a JSON value and indexes IDs in sorted sets
// scored by creation time in Unix milliseconds:
//
//	{prefix}:alert:{id}              alert JSON
//	{prefix}:alerts:{len}:{journey}:{user} per journey/user index
//	{prefix}:alerts                  global index
type Redis struct {
	client *redis.Client
	prefix string
}

// DefaultRedisPrefix namespaces every key written by the Redis store.
const DefaultRedisPrefix = "journeywatch"

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: redis: connect %s: %w", addr, err)
	}
	return NewRedis(client, DefaultRedisPrefix), nil
}

// NewRedis wraps an existing client. Keys are namespaced under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) alertKey(id string) string { return r.prefix + ":alert:" + id }
func (r *Redis) indexKey() string          { return r.prefix + ":alerts" }

// pairKey length-prefixes the journey so IDs containing ':' cannot collide.
func (r *Redis) pairKey(journeyID, userID string) string {
	return r.prefix + ":alerts:" + strconv.Itoa(len(journeyID)) + ":" + journeyID + ":" + userID
}

func (r *Redis) FindRecentUnresolved(ctx context.Context, journeyID, userID string, since time.Time) (*model.Alert, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, r.pairKey(journeyID, userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: find recent alert: %w", err)
	}

	for _, id := range ids {
		a, err := r.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: find recent alert: %w", err)
		}
		if a.JourneyID != journeyID || a.UserID != userID {
			continue
		}
		if a.Unresolved() && !a.CreatedAt.Before(since) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *Redis) Insert(ctx context.Context, a model.Alert) (model.Alert, error) {
	a.CreatedAt = a.CreatedAt.UTC()
	data, err := json.Marshal(a)
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: insert alert %s: %w", a.ID, err)
	}

	ok, err := r.client.SetNX(ctx, r.alertKey(a.ID), data, 0).Result()
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: insert alert %s: %w", a.ID, err)
	}
	if !ok {
		return model.Alert{}, fmt.Errorf("store: insert %s: duplicate id", a.ID)
	}

	score := float64(a.CreatedAt.UnixMilli())
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.pairKey(a.JourneyID, a.UserID), redis.Z{Score: score, Member: a.ID})
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: score, Member: a.ID})
		return nil
	})
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: index alert %s: %w", a.ID, err)
	}
	return a, nil
}

func (r *Redis) Get(ctx context.Context, id string) (model.Alert, error) {
	a, err := r.load(ctx, id)
	if err != nil {
		return model.Alert{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return a, nil
}

func (r *Redis) List(ctx context.Context, f Filter) ([]model.Alert, error) {
	key := r.indexKey()
	if f.JourneyID != "" && f.UserID != "" {
		key = r.pairKey(f.JourneyID, f.UserID)
	}
	ids, err := r.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list alerts: %w", err)
	}

	var out []model.Alert
	for _, id := range ids {
		a, err := r.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: list alerts: %w", err)
		}
		if !f.match(&a) {
			continue
		}
		out = append(out, a)
		if len(out) == f.limit() {
			break
		}
	}
	return out, nil
}

func (r *Redis) SetStatus(ctx context.Context, id string, status model.AlertStatus, at time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("store: set status %s: invalid status %q", id, status)
	}
	a, err := r.load(ctx, id)
	if err != nil {
		return fmt.Errorf("store: set status %s: %w", id, err)
	}
	applyStatus(&a, status, at)

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("store: set status %s: %w", id, err)
	}
	if err := r.client.Set(ctx, r.alertKey(id), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("store: set status %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) load(ctx context.Context, id string) (model.Alert, error) {
	data, err := r.client.Get(ctx, r.alertKey(id)).Bytes()
	if err == redis.Nil {
		return model.Alert{}, ErrNotFound
	}
	if err != nil {
		return model.Alert{}, err
	}
	var a model.Alert
	if err := json.Unmarshal(data, &a); err != nil {
		return model.Alert{}, fmt.Errorf("decode alert %s: %w", id, err)
	}
	return a, nil
}
