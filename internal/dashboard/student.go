package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"mathify/internal/metrics"
	"mathify/internal/model"
	"mathify/internal/notify"
)

// StudentState is what the student dashboard renders. Each part loads on
// its own, so one failed fetch leaves the others intact.
type StudentState struct {
	Profile      *model.Student      `json:"profile,omitempty"`
	Month        model.Month         `json:"month"`
	MonthPhase   Phase               `json:"monthPhase"`
	MonthDetails *model.MonthDetails `json:"monthDetails,omitempty"`
	Fees         []model.FeeSummary  `json:"fees"`
	Errors       map[string]string   `json:"errors,omitempty"`
}

// Student is the logged-in student's read-only dashboard.
type Student struct {
	api  Backend
	feed notify.Feed
	sid  string
	id   string
	now  func() time.Time

	mu           sync.Mutex
	profile      *model.Student
	month        model.Month
	monthPhase   Phase
	gen          generation
	monthDetails *model.MonthDetails
	fees         []model.FeeSummary
	errs         map[string]string
}

// NewStudent creates the dashboard of student id for session sid.
func NewStudent(api Backend, feed notify.Feed, sid, id string) *Student {
	s := &Student{api: api, feed: feed, sid: sid, id: id, now: time.Now, monthPhase: PhaseIdle}
	s.month = model.MonthOf(s.now())
	s.errs = make(map[string]string)
	return s
}

// Load fetches the profile, the selected month and the fee summaries in
// parallel.
func (s *Student) Load(ctx context.Context) StudentState {
	s.mu.Lock()
	month := s.month
	gen := s.gen.next()
	s.monthPhase = PhaseLoading
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		p, err := s.api.Student(ctx, s.id)
		s.record("profile", err, func() { s.profile = p })
		return nil
	})
	g.Go(func() error {
		s.loadMonth(ctx, gen, month)
		return nil
	})
	g.Go(func() error {
		fees, err := s.api.FeeSummaries(ctx, s.id)
		if fees == nil {
			fees = []model.FeeSummary{}
		}
		s.record("fees", err, func() { s.fees = fees })
		return nil
	})
	_ = g.Wait()
	return s.State()
}

func (s *Student) record(part string, err error, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("sid", s.sid).Str("part", part).Msg("student dashboard load")
		s.errs[part] = err.Error()
		return
	}
	delete(s.errs, part)
	apply()
}

func (s *Student) loadMonth(ctx context.Context, gen uint64, month model.Month) {
	d, err := s.api.MonthDetails(ctx, s.id, month)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.current(gen) {
		metrics.StaleResponse("student_month")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("sid", s.sid).Stringer("month", month).Msg("student month details")
		s.monthPhase = PhaseFailed
		s.monthDetails = nil
		s.errs["month"] = err.Error()
		return
	}
	delete(s.errs, "month")
	s.monthPhase = PhaseLoaded
	s.monthDetails = d
}

// SetMonth selects month and reloads only the month-scoped details.
func (s *Student) SetMonth(ctx context.Context, month model.Month) StudentState {
	s.mu.Lock()
	s.month = month
	s.monthPhase = PhaseLoading
	gen := s.gen.next()
	s.mu.Unlock()

	s.loadMonth(ctx, gen, month)
	return s.State()
}

// State returns a snapshot.
func (s *Student) State() StudentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := StudentState{
		Profile:      s.profile,
		Month:        s.month,
		MonthPhase:   s.monthPhase,
		MonthDetails: s.monthDetails,
		Fees:         append([]model.FeeSummary{}, s.fees...),
	}
	if len(s.errs) > 0 {
		st.Errors = make(map[string]string, len(s.errs))
		for k, v := range s.errs {
			st.Errors[k] = v
		}
	}
	return st
}

// Attendance loads the student's full attendance history.
func (s *Student) Attendance(ctx context.Context) ([]model.Attendance, error) {
	recs, err := s.api.Attendance(ctx, s.id)
	if err != nil {
		log.Error().Err(err).Str("sid", s.sid).Msg("student attendance")
		notify.Send(ctx, s.feed, s.sid, notify.Error, "Error fetching attendance", apiMessage(err, "Failed to fetch attendance records."))
		return []model.Attendance{}, err
	}
	return recs, nil
}

// Fees reloads the fee summary list.
func (s *Student) Fees(ctx context.Context) ([]model.FeeSummary, error) {
	fees, err := s.api.FeeSummaries(ctx, s.id)
	if fees == nil {
		fees = []model.FeeSummary{}
	}
	s.record("fees", err, func() { s.fees = fees })
	return fees, err
}

// FeeHistory loads the per-month fee records.
func (s *Student) FeeHistory(ctx context.Context) ([]model.FeeRecord, error) {
	recs, err := s.api.FeeRecords(ctx, s.id)
	if err != nil {
		log.Error().Err(err).Str("sid", s.sid).Msg("student fee history")
		return []model.FeeRecord{}, err
	}
	return recs, nil
}

// Invoice downloads the invoice for one of the student's billing months.
func (s *Student) Invoice(ctx context.Context, month model.Month) (Invoice, error) {
	return downloadInvoice(ctx, s.api, s.feed, s.sid, s.id, month)
}
