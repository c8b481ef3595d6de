package dashboard

import (
	"sync"
	"time"

	"mathify/internal/notify"
	"mathify/internal/session"
)

// BackendFunc builds the backend caller authenticated as sess.
type BackendFunc func(sess *session.Session) Backend

type entry struct {
	admin   *Admin
	student *Student
	seen    time.Time
}

// Views keeps the dashboards of live sessions. Its lock only guards the
// map; each dashboard locks its own state and never across a backend call.
type Views struct {
	backend BackendFunc
	feed    notify.Feed
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewViews creates an empty registry.
func NewViews(backend BackendFunc, feed notify.Feed) *Views {
	return &Views{backend: backend, feed: feed, now: time.Now, entries: make(map[string]*entry)}
}

func (v *Views) get(sid string) *entry {
	e, ok := v.entries[sid]
	if !ok {
		e = &entry{}
		v.entries[sid] = e
	}
	e.seen = v.now()
	return e
}

// Admin returns the admin dashboard of sess, creating it on first use.
func (v *Views) Admin(sess *session.Session) *Admin {
	v.mu.Lock()
	defer v.mu.Unlock()
	e := v.get(sess.ID)
	if e.admin == nil {
		e.admin = NewAdmin(v.backend(sess), v.feed, sess.ID)
	}
	return e.admin
}

// Student returns the student dashboard of sess, creating it on first use.
func (v *Views) Student(sess *session.Session) *Student {
	v.mu.Lock()
	defer v.mu.Unlock()
	e := v.get(sess.ID)
	if e.student == nil {
		e.student = NewStudent(v.backend(sess), v.feed, sess.ID, sess.User.ID)
	}
	return e.student
}

// Drop forgets a session's dashboards, e.g. on logout.
func (v *Views) Drop(sid string) {
	v.mu.Lock()
	delete(v.entries, sid)
	v.mu.Unlock()
}

// Sweep drops dashboards unused for longer than idle and returns how many
// sessions were dropped.
func (v *Views) Sweep(idle time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := v.now().Add(-idle)
	n := 0
	for sid, e := range v.entries {
		if e.seen.Before(cutoff) {
			delete(v.entries, sid)
			n++
		}
	}
	return n
}

// Len reports the number of tracked sessions.
func (v *Views) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}
