// Package notify carries transient user-facing notices (the "toasts") from
// dashboard operations to the browser, which drains them by polling.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mathify/internal/store"
)

// Level of a notice.
type Level string

const (
	Success Level = "success"
	Error   Level = "error"
	Info    Level = "info"
)

// Notice is one transient message.
type Notice struct {
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Feed is the abstraction over different backends.
type Feed interface {
	Publish(ctx context.Context, sid string, n Notice) error
	Drain(ctx context.Context, sid string) ([]Notice, error)
}

// Send publishes a notice and only logs a failure; losing a toast must not
// fail the operation that produced it.
func Send(ctx context.Context, f Feed, sid string, level Level, message, description string) {
	if f == nil || sid == "" {
		return
	}
	n := Notice{Level: level, Message: message, Description: description, At: time.Now().UTC()}
	if err := f.Publish(ctx, sid, n); err != nil {
		log.Warn().Err(err).Str("sid", sid).Msg("notice publish failed")
	}
}

// InMemory is a bounded per-session buffer; oldest notices are dropped first.
type InMemory struct {
	mu      sync.Mutex
	size    int
	queue   map[string][]Notice
	touched map[string]time.Time
	now     func() time.Time
}

// NewInMemory creates a feed keeping at most size notices per session.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 20
	}
	return &InMemory{
		size:    size,
		queue:   make(map[string][]Notice),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Publish enqueues a notice.
func (q *InMemory) Publish(_ context.Context, sid string, n Notice) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := append(q.queue[sid], n)
	if len(list) > q.size {
		list = list[len(list)-q.size:]
	}
	q.queue[sid] = list
	q.touched[sid] = q.now()
	return nil
}

// Drain returns and removes all pending notices, oldest first.
func (q *InMemory) Drain(_ context.Context, sid string) ([]Notice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue[sid]
	delete(q.queue, sid)
	delete(q.touched, sid)
	if out == nil {
		out = []Notice{}
	}
	return out, nil
}

// Sweep drops the notices of sessions nobody has published to for idle,
// which covers sessions that expired without draining. It returns how many
// sessions were dropped.
func (q *InMemory) Sweep(idle time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.now().Add(-idle)
	n := 0
	for sid, at := range q.touched {
		if at.Before(cutoff) {
			delete(q.queue, sid)
			delete(q.touched, sid)
			n++
		}
	}
	return n
}

// Redis keeps one list per session, LPUSH on publish and RPOP on drain.
type Redis struct {
	client *redis.Client
	size   int64
	ttl    time.Duration
}

// NewRedis builds a feed on an existing connection.
func NewRedis(r *store.Redis, size int, ttl time.Duration) *Redis {
	if size <= 0 {
		size = 20
	}
	return &Redis{client: r.Client, size: int64(size), ttl: ttl}
}

// Publish enqueues a notice.
func (q *Redis) Publish(ctx context.Context, sid string, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := store.Key("notices", sid)
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, key, body)
	pipe.LTrim(ctx, key, 0, q.size-1)
	pipe.Expire(ctx, key, q.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Drain pops every pending notice, oldest first.
func (q *Redis) Drain(ctx context.Context, sid string) ([]Notice, error) {
	key := store.Key("notices", sid)
	out := []Notice{}
	for {
		raw, err := q.client.RPop(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		var n Notice
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
}
