package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/spec-kit/moments/internal/domain"
)

// ErrSessionNotFound is returned for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores login sessions.
type SessionRepository interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
}

// Redis layout:
//
//	session:<id>          -> JSON domain.Session, TTL = session lifetime
//	session:user:<userID> -> set of session ids
type sessionRepository struct {
	rdb *goredis.Client
	now func() time.Time
}

// NewSessionRepository returns a Redis-backed session store.
func NewSessionRepository(rdb *goredis.Client) SessionRepository {
	return &sessionRepository{rdb: rdb, now: time.Now}
}

func sessionKey(id string) string          { return "session:" + id }
func userSessionsKey(userID string) string { return "session:user:" + userID }

func (r *sessionRepository) Create(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if userID == "" {
		return nil, errors.New("session requires a user id")
	}
	if ttl <= 0 {
		return nil, errors.New("session requires a positive ttl")
	}

	now := r.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	body, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), body, ttl)
	pipe.SAdd(ctx, userSessionsKey(userID), session.ID)
	pipe.Expire(ctx, userSessionsKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	body, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, userSessionsKey(session.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *sessionRepository) DeleteForUser(ctx context.Context, userID string) error {
	ids, err := r.rdb.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	return r.rdb.Del(ctx, keys...).Err()
}
