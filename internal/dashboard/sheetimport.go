package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"mathify/internal/model"
	"mathify/internal/notify"
)

// ImportState is a snapshot of the add-student-from-sheet form.
type ImportState struct {
	RowNumber   int            `json:"rowNumber,omitempty"`
	Student     model.SheetRow `json:"student,omitempty"`
	FeesPerHour float64        `json:"feesPerHour,omitempty"`
	Schedule    model.Schedule `json:"schedule"`
	CanSubmit   bool           `json:"canSubmit"`
}

// SheetImport pulls a pre-entered student from the enrolment sheet and lets
// the admin add an hourly fee and a weekly schedule before creating it.
type SheetImport struct {
	mu          sync.Mutex
	row         int
	student     model.SheetRow
	feesPerHour float64
	schedule    model.Schedule
}

func (s *SheetImport) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.row = 0
	s.student = nil
	s.feesPerHour = 0
	s.schedule = make(model.Schedule, len(model.Weekdays))
	for _, d := range model.Weekdays {
		s.schedule[d] = model.TimeRange{}
	}
}

// FilterSchedule keeps only the days with both a start and an end time.
func FilterSchedule(in model.Schedule) model.Schedule {
	out := make(model.Schedule)
	for day, r := range in {
		if r.Complete() {
			out[day] = r
		}
	}
	return out
}

func (s *SheetImport) canSubmit() bool {
	return s.student != nil && s.feesPerHour > 0 && len(FilterSchedule(s.schedule)) > 0
}

func (s *SheetImport) state() ImportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched := make(model.Schedule, len(s.schedule))
	for d, r := range s.schedule {
		sched[d] = r
	}
	return ImportState{
		RowNumber:   s.row,
		Student:     s.student,
		FeesPerHour: s.feesPerHour,
		Schedule:    sched,
		CanSubmit:   s.canSubmit(),
	}
}

// Import returns the form snapshot.
func (a *Admin) Import() ImportState {
	return a.sheet.state()
}

// FetchFromSheet loads the student entered on sheet row rowNumber. The
// admin's fee and schedule edits survive a refetch.
func (a *Admin) FetchFromSheet(ctx context.Context, rowNumber int) (ImportState, error) {
	if rowNumber <= 0 {
		return a.sheet.state(), ErrInvalidRow
	}
	st, err := a.api.StudentFromSheet(ctx, rowNumber)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Int("row", rowNumber).Msg("fetch student from sheet")
		return a.sheet.state(), err
	}
	a.sheet.mu.Lock()
	a.sheet.row = rowNumber
	a.sheet.student = st
	a.sheet.mu.Unlock()
	return a.sheet.state(), nil
}

// SetImportFee sets the hourly fee.
func (a *Admin) SetImportFee(feesPerHour float64) ImportState {
	a.sheet.mu.Lock()
	a.sheet.feesPerHour = feesPerHour
	a.sheet.mu.Unlock()
	return a.sheet.state()
}

// SetImportSlot sets one weekday's time range. Empty ends clear that side.
func (a *Admin) SetImportSlot(day, from, to string) (ImportState, error) {
	if !model.IsWeekday(day) {
		return a.sheet.state(), ErrMissingFields
	}
	if (from != "" && !validClock(from)) || (to != "" && !validClock(to)) {
		return a.sheet.state(), ErrInvalidTime
	}
	a.sheet.mu.Lock()
	a.sheet.schedule[day] = model.TimeRange{From: from, To: to}
	a.sheet.mu.Unlock()
	return a.sheet.state(), nil
}

// SubmitImport creates the student. It is refused until a fee and at least
// one complete weekday are set. On success the form is reset.
func (a *Admin) SubmitImport(ctx context.Context) error {
	a.sheet.mu.Lock()
	if a.sheet.student == nil {
		a.sheet.mu.Unlock()
		return ErrNothingImported
	}
	if !a.sheet.canSubmit() {
		a.sheet.mu.Unlock()
		return ErrImportIncomplete
	}
	payload, err := importPayload(a.sheet.student, a.sheet.feesPerHour, FilterSchedule(a.sheet.schedule))
	a.sheet.mu.Unlock()
	if err != nil {
		return err
	}

	if err := a.api.CreateStudent(ctx, payload); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("email", payload.Str("email")).Msg("create student from sheet")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Error creating student", apiMessage(err, ""))
		return err
	}
	notify.Send(ctx, a.feed, a.sid, notify.Success, "Student created", payload.Str("name"))
	a.sheet.reset()
	a.index.invalidate()
	return nil
}

// importPayload is the fetched row with the admin's fee and schedule laid
// over it. Columns the row carries are posted back untouched.
func importPayload(row model.SheetRow, feesPerHour float64, sched model.Schedule) (model.SheetRow, error) {
	out, err := row.With("feesPerHour", feesPerHour)
	if err != nil {
		return nil, err
	}
	return out.With("schedule", sched)
}

// CancelImport discards the form.
func (a *Admin) CancelImport() {
	a.sheet.reset()
}
