package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"mathify/internal/metrics"
	"mathify/internal/model"
)

// DetailState is a snapshot of the student month-detail view.
type DetailState struct {
	Open       bool                `json:"open"`
	StudentID  string              `json:"studentId,omitempty"`
	Month      model.Month         `json:"month"`
	Phase      Phase               `json:"phase"`
	Details    *model.MonthDetails `json:"details,omitempty"`
	FeeRecords []model.FeeRecord   `json:"feeRecords"`
	Error      string              `json:"error,omitempty"`
}

// DetailView shows one student's month of attendance next to their whole
// fee history. Only the month-scoped part reloads when the month changes.
type DetailView struct {
	mu         sync.Mutex
	open       bool
	studentID  string
	month      model.Month
	phase      Phase
	gen        generation
	details    *model.MonthDetails
	feeRecords []model.FeeRecord
	err        string
}

func (v *DetailView) begin(studentID string, month model.Month) (uint64, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if studentID != "" {
		v.open = true
		v.studentID = studentID
		v.feeRecords = nil
	}
	v.month = month
	v.phase = PhaseLoading
	v.details = nil
	v.err = ""
	return v.gen.next(), v.studentID
}

func (v *DetailView) resolve(gen uint64, d *model.MonthDetails, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open || !v.gen.current(gen) {
		return false
	}
	if err != nil {
		v.phase = PhaseFailed
		v.err = err.Error()
		return true
	}
	v.phase = PhaseLoaded
	v.details = d
	return true
}

func (v *DetailView) setFeeRecords(studentID string, recs []model.FeeRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open && v.studentID == studentID {
		v.feeRecords = recs
	}
}

func (v *DetailView) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = false
	v.studentID = ""
	v.month = model.Month{}
	v.phase = PhaseIdle
	v.details = nil
	v.feeRecords = nil
	v.err = ""
	v.gen.next()
}

func (v *DetailView) isOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// State returns a snapshot.
func (v *DetailView) State() DetailState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return DetailState{Phase: PhaseIdle, FeeRecords: []model.FeeRecord{}}
	}
	recs := v.feeRecords
	if recs == nil {
		recs = []model.FeeRecord{}
	}
	return DetailState{
		Open:       true,
		StudentID:  v.studentID,
		Month:      v.month,
		Phase:      v.phase,
		Details:    v.details,
		FeeRecords: append([]model.FeeRecord(nil), recs...),
		Error:      v.err,
	}
}

// OpenDetail opens the detail view on the current month and loads both the
// month details and the fee history.
func (a *Admin) OpenDetail(ctx context.Context, studentID string) DetailState {
	month := model.MonthOf(a.now())
	gen, _ := a.detail.begin(studentID, month)
	a.loadMonthDetails(ctx, gen, studentID, month)

	recs, err := a.api.FeeRecords(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Msg("fetch fee records")
		recs = []model.FeeRecord{}
	}
	a.detail.setFeeRecords(studentID, recs)
	return a.detail.State()
}

// ChangeDetailMonth refetches only the month-scoped details.
func (a *Admin) ChangeDetailMonth(ctx context.Context, month model.Month) (DetailState, error) {
	if !a.detail.isOpen() {
		return a.detail.State(), ErrDetailClosed
	}
	gen, studentID := a.detail.begin("", month)
	a.loadMonthDetails(ctx, gen, studentID, month)
	return a.detail.State(), nil
}

func (a *Admin) loadMonthDetails(ctx context.Context, gen uint64, studentID string, month model.Month) {
	d, err := a.api.MonthDetails(ctx, studentID, month)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Stringer("month", month).Msg("fetch month details")
	}
	if !a.detail.resolve(gen, d, err) {
		metrics.StaleResponse("detail")
	}
}

// Detail returns the detail view snapshot.
func (a *Admin) Detail() DetailState {
	return a.detail.State()
}

// CloseDetail closes the detail view.
func (a *Admin) CloseDetail() {
	a.detail.close()
}
