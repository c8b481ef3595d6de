package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mathify/internal/store"
)

// Store is persisted per-session storage: a small key/value map for each
// session id that outlives a single request.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, bool, error)
	Set(ctx context.Context, sid, key, value string) error
	Delete(ctx context.Context, sid, key string) error
	Clear(ctx context.Context, sid string) error
}

// MemoryStore keeps session values in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[string]*memEntry
	now  func() time.Time
}

type memEntry struct {
	values  map[string]string
	expires time.Time
}

// NewMemoryStore creates a store whose sessions expire ttl after last write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, data: make(map[string]*memEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[sid]
	if !ok || (m.ttl > 0 && m.now().After(e.expires)) {
		return "", false, nil
	}
	v, ok := e.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[sid]
	if !ok {
		e = &memEntry{values: make(map[string]string)}
		m.data[sid] = e
	}
	e.values[key] = value
	e.expires = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[sid]; ok {
		delete(e.values, key)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sid)
	return nil
}

// Sweep drops expired sessions.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl <= 0 {
		return 0
	}
	n := 0
	now := m.now()
	for sid, e := range m.data {
		if now.After(e.expires) {
			delete(m.data, sid)
			n++
		}
	}
	return n
}

// RedisStore keeps each session as one hash with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store on an existing connection.
func NewRedisStore(r *store.Redis, ttl time.Duration) *RedisStore {
	return &RedisStore{client: r.Client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, store.Key("session", sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	k := store.Key("session", sid)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, key, value)
	pipe.Expire(ctx, k, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, sid, key string) error {
	return s.client.HDel(ctx, store.Key("session", sid), key).Err()
}

func (s *RedisStore) Clear(ctx context.Context, sid string) error {
	return s.client.Del(ctx, store.Key("session", sid)).Err()
}

// PostgresStore keeps session values in the ui_session_values table.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore builds a store on an open pool.
func NewPostgresStore(db *store.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db.Client, ttl: ttl}
}

func (s *PostgresStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM ui_session_values
		WHERE session_id = $1 AND key = $2 AND expires_at > NOW()
	`, sid, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, sid, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ui_session_values (session_id, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`, sid, key, value, time.Now().UTC().Add(s.ttl))
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, sid, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ui_session_values WHERE session_id = $1 AND key = $2`, sid, key)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context, sid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ui_session_values WHERE session_id = $1`, sid)
	return err
}

// Sweep removes expired rows.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ui_session_values WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
