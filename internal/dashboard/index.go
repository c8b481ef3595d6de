package dashboard

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"mathify/internal/model"
)

// StudentsIndex is the searchable list of every student. It is fetched once
// and filtered in memory.
type StudentsIndex struct {
	mu       sync.Mutex
	loaded   bool
	students []model.Student
}

func (x *StudentsIndex) invalidate() {
	x.mu.Lock()
	x.loaded = false
	x.mu.Unlock()
}

func (x *StudentsIndex) snapshot() ([]model.Student, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.students, x.loaded
}

func (x *StudentsIndex) set(students []model.Student) {
	x.mu.Lock()
	x.students = students
	x.loaded = true
	x.mu.Unlock()
}

// FilterStudents keeps the students whose id, name or email contains query,
// ignoring case. An empty query keeps everyone.
func FilterStudents(students []model.Student, query string) []model.Student {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Student, 0, len(students))
	for _, s := range students {
		if q == "" ||
			strings.Contains(strings.ToLower(s.ID), q) ||
			strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Email), q) {
			out = append(out, s)
		}
	}
	return out
}

// Students returns the students matching query, loading the index first if
// it has not been loaded yet.
func (a *Admin) Students(ctx context.Context, query string) ([]model.Student, error) {
	students, loaded := a.index.snapshot()
	if !loaded {
		var err error
		if students, err = a.ReloadStudents(ctx); err != nil {
			return []model.Student{}, err
		}
	}
	return FilterStudents(students, query), nil
}

// ReloadStudents refetches the index.
func (a *Admin) ReloadStudents(ctx context.Context) ([]model.Student, error) {
	students, err := a.api.AllStudents(ctx)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Msg("load students index")
		return nil, err
	}
	a.index.set(students)
	return students, nil
}
