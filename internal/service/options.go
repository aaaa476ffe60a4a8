package service

import (
	"time"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/cache"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/events"
)

type options struct {
	publisher  events.Publisher
	cache      cache.HistoryCache
	cacheTTL   time.Duration
	pagination Pagination
	now        func() time.Time
}

type Option func(*options)

// WithPublisher announces every sent message on the event bus.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithHistoryCache caches before-timestamp history pages for ttl.
func WithHistoryCache(c cache.HistoryCache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

func WithPagination(p Pagination) Option {
	return func(o *options) {
		o.pagination = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		cache:      cache.NoopCache{},
		pagination: DefaultPagination,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// timestamp is the store's millisecond precision clock reading.
func (o options) timestamp() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}
