package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-delivery-bot/internal/config"
)

// Store persists sessions by user id. Get never returns a nil session for a
// nil error: a user without a stored record gets a fresh one.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// DefaultRetention is how long an idle session is kept before eviction.
const DefaultRetention = 7 * 24 * time.Hour

// MemoryStore keeps encoded sessions in process memory. Callers get their own
// copy from Get, so mutations are invisible until Save.
type MemoryStore struct {
	mu        sync.Mutex
	data      map[int64][]byte
	seen      map[int64]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore returns a MemoryStore that evicts sessions idle for longer
// than retention (DefaultRetention when <= 0).
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		data:      make(map[int64][]byte),
		seen:      make(map[int64]time.Time),
		retention: retention,
		now:       time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	raw, ok := m.data[userID]
	m.mu.Unlock()
	if !ok {
		return New(userID), nil
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[s.UserID] = raw
	m.seen[s.UserID] = m.now()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.data, userID)
	delete(m.seen, userID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Sweep evicts sessions not saved within the retention window and returns
// how many were dropped.
func (m *MemoryStore) Sweep() int {
	cutoff := m.now().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, at := range m.seen {
		if at.Before(cutoff) {
			delete(m.data, id)
			delete(m.seen, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("session sweep")
			}
		}
	}
}

// cmdable is the slice of the redis client RedisStore needs.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const keyPrefix = "delivery:session:"

// RedisStore keeps sessions in Redis with a sliding expiry of retention.
type RedisStore struct {
	client    cmdable
	retention time.Duration
}

// NewRedisStore wraps client. retention <= 0 means DefaultRetention.
func NewRedisStore(client cmdable, retention time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{client: client, retention: retention}, nil
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Get loads the session. Records of another schema version are dropped and a
// fresh session is returned.
func (r *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := r.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	s, err := Decode(raw)
	if errors.Is(err, ErrVersion) {
		log.Warn().Int64("user_id", userID).Err(err).Msg("discarding session")
		return New(userID), nil
	}
	return s, err
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key(s.UserID), raw, r.retention).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// NewRedisClient dials Redis from cfg (URL wins over address) and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}
