package cassandra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/config"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is the storage-unavailable error kind. Every failure that
// leaves the gateway wraps it.
var ErrUnavailable = errors.New("storage unavailable")

const maxBackoff = 30 * time.Second

var keyspaceName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// Client owns the process-wide Cassandra session. It is safe for concurrent
// use; the session is opened lazily and reopened after it has been closed.
type Client struct {
	cfg      config.CassandraConfig
	observer *Observer

	dial  func(*gocql.ClusterConfig) (*gocql.Session, error)
	sleep func(context.Context, time.Duration) error

	session atomic.Pointer[gocql.Session]
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithObserver attaches query and batch metrics to every session.
func WithObserver(o *Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client without connecting. Call Connect to fail fast
// at startup; otherwise the first query connects.
func NewClient(cfg config.CassandraConfig, opts ...Option) (*Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cassandra: no hosts configured")
	}
	if cfg.Keyspace != "" && !keyspaceName.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("cassandra: invalid keyspace name %q", cfg.Keyspace)
	}

	c := &Client{
		cfg:   cfg,
		dial:  func(cluster *gocql.ClusterConfig) (*gocql.Session, error) { return cluster.CreateSession() },
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes the session, retrying with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.Session(ctx)
	return err
}

// Session returns the live session, connecting first when there is none.
// Concurrent callers share a single connection attempt.
func (c *Client) Session(ctx context.Context) (*gocql.Session, error) {
	if s := c.session.Load(); s != nil && !s.Closed() {
		return s, nil
	}

	v, err, _ := c.group.Do("session", func() (interface{}, error) {
		if s := c.session.Load(); s != nil && !s.Closed() {
			return s, nil
		}
		s, err := c.establish(ctx)
		if err != nil {
			return nil, err
		}
		c.session.Store(s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gocql.Session), nil
}

func (c *Client) establish(ctx context.Context) (*gocql.Session, error) {
	l := log.Ctx(ctx)

	attempts := c.cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := c.dial(c.clusterConfig(c.cfg.Keyspace))
		if err == nil {
			l.Info().Strs("hosts", c.cfg.Hosts).Str(log.FieldKeyspace, c.cfg.Keyspace).
				Int(log.FieldAttempt, attempt).Msg("connected to cassandra")
			return session, nil
		}
		lastErr = err

		// The keyspace may not exist yet: create it and try again right away.
		if c.cfg.Keyspace != "" {
			if err := c.createKeyspace(ctx); err != nil {
				lastErr = errors.Join(lastErr, err)
			} else if session, err := c.dial(c.clusterConfig(c.cfg.Keyspace)); err == nil {
				l.Info().Str(log.FieldKeyspace, c.cfg.Keyspace).Msg("created keyspace and connected to cassandra")
				return session, nil
			} else {
				lastErr = err
			}
		}

		if attempt == attempts {
			break
		}

		delay := backoffDelay(c.cfg.BackoffBase, attempt)
		l.Warn().Err(lastErr).Int(log.FieldAttempt, attempt).Int("max_attempts", attempts).
			Dur(log.FieldBackoff, delay).Msg("cassandra connection failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: connect: %w", ErrUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w: connect after %d attempts: %w", ErrUnavailable, attempts, lastErr)
}

func (c *Client) createKeyspace(ctx context.Context) error {
	session, err := c.dial(c.clusterConfig(""))
	if err != nil {
		return fmt.Errorf("connect without keyspace: %w", err)
	}
	defer session.Close()

	if err := session.Query(createKeyspaceStmt(c.cfg.Keyspace, c.cfg.ReplicationFactor)).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace %s: %w", c.cfg.Keyspace, err)
	}
	return nil
}

func createKeyspaceStmt(keyspace string, rf int) string {
	if rf <= 0 {
		rf = 1
	}
	return fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		keyspace, rf,
	)
}

func (c *Client) clusterConfig(keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(c.cfg.Hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = parseConsistency(c.cfg.Consistency)
	if c.cfg.Port > 0 {
		cluster.Port = c.cfg.Port
	}
	if c.cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = c.cfg.ConnectTimeout
	}
	if c.cfg.Timeout > 0 {
		cluster.Timeout = c.cfg.Timeout
	}
	if c.cfg.NumConns > 0 {
		cluster.NumConns = c.cfg.NumConns
	}

	if c.cfg.Username != "" && c.cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: c.cfg.Username,
			Password: c.cfg.Password,
		}
	}

	// Retry policy for resilience
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	if c.observer != nil {
		cluster.QueryObserver = c.observer
		cluster.BatchObserver = c.observer
	}

	return cluster
}

// Query builds a statement bound to ctx on the live session.
func (c *Client) Query(ctx context.Context, stmt string, args ...interface{}) (*gocql.Query, error) {
	s, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Query(stmt, args...).WithContext(ctx), nil
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	q, err := c.Query(ctx, stmt, args...)
	if err != nil {
		return err
	}
	return Wrap(verb(stmt), q.Exec())
}

// Execute runs a statement and returns every row as a column map.
func (c *Client) Execute(ctx context.Context, stmt string, args ...interface{}) ([]map[string]interface{}, error) {
	q, err := c.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	rows, err := q.Iter().SliceMap()
	if err != nil {
		return nil, Wrap(verb(stmt), err)
	}
	return rows, nil
}

// ExecuteBatch runs the statements added by build as one logged batch. An
// empty batch is not sent.
func (c *Client) ExecuteBatch(ctx context.Context, build func(*gocql.Batch)) error {
	s, err := c.Session(ctx)
	if err != nil {
		return err
	}

	b := s.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	build(b)
	if b.Size() == 0 {
		return nil
	}
	return Wrap("batch", s.ExecuteBatch(b))
}

// Close releases the session. A later query reconnects.
func (c *Client) Close() {
	if s := c.session.Swap(nil); s != nil {
		s.Close()
	}
}

// Wrap marks err as storage-unavailable unless it already is.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// backoffDelay is base * 2^attempt, capped at maxBackoff.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func verb(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToLower(fields[0])
}

// parseConsistency converts a string consistency level to gocql.Consistency.
func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.LocalOne
	}
}
