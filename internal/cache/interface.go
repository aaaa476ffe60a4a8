package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// HistoryCache stores rendered pages of before-timestamp message history.
type HistoryCache interface {
	Get(ctx context.Context, key string) (*domain.MessagePage, error)
	Set(ctx context.Context, key string, page *domain.MessagePage, ttl time.Duration) error
	BuildKey(conversationID int64, before time.Time, cursor string, page, limit int) string
	Close() error
}

// NoopCache never stores anything; every Get misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.MessagePage, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, *domain.MessagePage, time.Duration) error {
	return nil
}

func (NoopCache) BuildKey(conversationID int64, before time.Time, cursor string, page, limit int) string {
	return buildKey("noop", conversationID, before, cursor, page, limit)
}

func (NoopCache) Close() error {
	return nil
}
