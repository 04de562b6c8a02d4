package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrTokenConsumed is returned when a single-use token was already spent.
var ErrTokenConsumed = errors.New("token already consumed")

// TokenLedger records spent single-use tokens by id until they would have
// expired anyway.
type TokenLedger interface {
	Consume(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsConsumed(ctx context.Context, tokenID string) (bool, error)
	Release(ctx context.Context, tokenID string) error
}

type tokenLedger struct {
	rdb *goredis.Client
	now func() time.Time
}

// NewTokenLedger returns a Redis-backed ledger.
func NewTokenLedger(rdb *goredis.Client) TokenLedger {
	return &tokenLedger{rdb: rdb, now: time.Now}
}

func ledgerKey(tokenID string) string { return "token:used:" + tokenID }

// Consume marks the token spent. SET NX makes the first caller win when
// the same token is submitted concurrently.
func (l *tokenLedger) Consume(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token id required")
	}
	ttl := expiresAt.Sub(l.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := l.rdb.SetNX(ctx, ledgerKey(tokenID), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if !ok {
		return ErrTokenConsumed
	}
	return nil
}

func (l *tokenLedger) IsConsumed(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, ledgerKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return n > 0, nil
}

// Release forgets a spent token so it can be used again. Callers use it to
// undo Consume when the action the token authorized did not persist.
func (l *tokenLedger) Release(ctx context.Context, tokenID string) error {
	if err := l.rdb.Del(ctx, ledgerKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("release token: %w", err)
	}
	return nil
}
