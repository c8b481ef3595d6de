package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mathify/internal/metrics"
	"mathify/internal/model"
	"mathify/internal/notify"
)

// RosterEntry is one student of the selected batch plus the attendance
// form's client-side fields. StudyHours and IsPresent are not persisted
// until attendance is submitted.
type RosterEntry struct {
	model.StudentSummary
	StudyHours float64 `json:"studyHours"`
	IsPresent  bool    `json:"isPresent"`
}

// AdminState is what the admin dashboard renders.
type AdminState struct {
	Batches        []model.Batch `json:"batches"`
	BatchesLoading bool          `json:"batchesLoading"`
	SelectedBatch  string        `json:"selectedBatch,omitempty"`
	Roster         []RosterEntry `json:"roster"`
	RosterLoading  bool          `json:"rosterLoading"`
	AttendanceDate string        `json:"attendanceDate"`
	FeeForm        FeeFormState  `json:"feeForm"`
	Detail         DetailState   `json:"detail"`
}

// Admin owns one admin session's dashboard.
type Admin struct {
	api  Backend
	feed notify.Feed
	sid  string
	now  func() time.Time

	mu             sync.Mutex
	batches        []model.Batch
	batchesLoading bool
	selectedBatch  string
	roster         []RosterEntry
	rosterLoading  bool
	attendanceDate string
	feePanels      map[string][]model.FeeSummary

	fee    FeeForm
	detail DetailView
	index  StudentsIndex
	sheet  SheetImport
}

// NewAdmin creates an admin dashboard for session sid.
func NewAdmin(api Backend, feed notify.Feed, sid string) *Admin {
	a := &Admin{
		api:       api,
		feed:      feed,
		sid:       sid,
		now:       time.Now,
		batches:   []model.Batch{},
		roster:    []RosterEntry{},
		feePanels: make(map[string][]model.FeeSummary),
	}
	a.attendanceDate = a.now().Format(dateLayout)
	a.sheet.reset()
	return a
}

// State returns a snapshot of the dashboard.
func (a *Admin) State() AdminState {
	a.mu.Lock()
	st := AdminState{
		Batches:        append([]model.Batch(nil), a.batches...),
		BatchesLoading: a.batchesLoading,
		SelectedBatch:  a.selectedBatch,
		Roster:         append([]RosterEntry(nil), a.roster...),
		RosterLoading:  a.rosterLoading,
		AttendanceDate: a.attendanceDate,
	}
	a.mu.Unlock()
	st.FeeForm = a.fee.State()
	st.Detail = a.detail.State()
	return st
}

// LoadBatches fetches all batches. A failure leaves the list empty.
func (a *Admin) LoadBatches(ctx context.Context) []model.Batch {
	a.mu.Lock()
	a.batchesLoading = true
	a.mu.Unlock()

	batches, err := a.api.Batches(ctx)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Msg("load batches")
		batches = []model.Batch{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = batches
	a.batchesLoading = false
	return append([]model.Batch(nil), batches...)
}

// CreateBatch creates a batch and reloads the batch list on success.
func (a *Admin) CreateBatch(ctx context.Context, b model.NewBatch) error {
	if err := a.api.CreateBatch(ctx, b); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Msg("create batch")
		return err
	}
	a.LoadBatches(ctx)
	return nil
}

// SelectBatch makes batchID current and loads its roster.
func (a *Admin) SelectBatch(ctx context.Context, batchID string) ([]RosterEntry, error) {
	a.mu.Lock()
	a.selectedBatch = batchID
	a.mu.Unlock()
	return a.RefreshRoster(ctx)
}

// RefreshRoster reloads the selected batch's student summaries, resetting
// every row to StudyHours=1 and IsPresent=true.
func (a *Admin) RefreshRoster(ctx context.Context) ([]RosterEntry, error) {
	a.mu.Lock()
	batchID := a.selectedBatch
	if batchID == "" {
		a.mu.Unlock()
		return nil, ErrNoBatchSelected
	}
	a.rosterLoading = true
	a.mu.Unlock()

	summaries, err := a.api.BatchSummary(ctx, batchID)
	entries := make([]RosterEntry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, RosterEntry{StudentSummary: s, StudyHours: 1, IsPresent: true})
	}
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("batch", batchID).Msg("load roster")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selectedBatch != batchID {
		// another batch was picked while this one loaded
		metrics.StaleResponse("roster")
		return append([]RosterEntry(nil), a.roster...), err
	}
	a.roster = entries
	a.rosterLoading = false
	return append([]RosterEntry(nil), entries...), err
}

// EditRosterEntry changes the client-side attendance fields of one row.
func (a *Admin) EditRosterEntry(studentID string, studyHours *float64, isPresent *bool) (RosterEntry, error) {
	if studyHours != nil && *studyHours <= 0 {
		return RosterEntry{}, ErrInvalidStudyHours
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.roster {
		if a.roster[i].Student.ID != studentID {
			continue
		}
		if studyHours != nil {
			a.roster[i].StudyHours = *studyHours
		}
		if isPresent != nil {
			a.roster[i].IsPresent = *isPresent
		}
		return a.roster[i], nil
	}
	return RosterEntry{}, ErrUnknownStudent
}

// SetAttendanceDate picks the date attendance is marked for.
func (a *Admin) SetAttendanceDate(date string) error {
	if !validDate(date) {
		return ErrInvalidDate
	}
	a.mu.Lock()
	a.attendanceDate = date
	a.mu.Unlock()
	return nil
}

// SubmitAttendance posts one record per loaded student in a single request,
// then refreshes the roster. It returns the number of records sent.
func (a *Admin) SubmitAttendance(ctx context.Context) (int, error) {
	a.mu.Lock()
	if a.selectedBatch == "" {
		a.mu.Unlock()
		return 0, ErrNoBatchSelected
	}
	if len(a.roster) == 0 {
		a.mu.Unlock()
		return 0, ErrEmptyRoster
	}
	rows := make([]model.AttendanceEntry, 0, len(a.roster))
	for _, r := range a.roster {
		rows = append(rows, model.AttendanceEntry{
			Student:   r.Student.ID,
			IsPresent: r.IsPresent,
			Hours:     r.StudyHours,
			Date:      a.attendanceDate,
		})
	}
	a.mu.Unlock()

	if _, err := a.api.AddAttendance(ctx, rows); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Msg("submit attendance")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Error marking attendance", err.Error())
		return 0, err
	}
	if _, err := a.RefreshRoster(ctx); err != nil {
		log.Warn().Err(err).Str("sid", a.sid).Msg("refresh roster after attendance")
	}
	return len(rows), nil
}

// CreateStudent posts a new student into the selected batch. The roster is
// refreshed only when the create succeeds.
func (a *Admin) CreateStudent(ctx context.Context, st model.NewStudent) error {
	a.mu.Lock()
	batchID := a.selectedBatch
	a.mu.Unlock()
	if batchID == "" {
		return ErrNoBatchSelected
	}
	st.Batch = batchID

	if err := a.api.CreateStudent(ctx, st); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Msg("create student")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Error creating student", err.Error())
		return err
	}
	a.index.invalidate()
	if _, err := a.RefreshRoster(ctx); err != nil {
		log.Warn().Err(err).Str("sid", a.sid).Msg("refresh roster after create")
	}
	return nil
}

// OpenFeeForm opens the settlement form for studentID on the previous
// calendar month and loads its fee detail.
func (a *Admin) OpenFeeForm(ctx context.Context, studentID string) FeeFormState {
	month := model.MonthOf(a.now()).Previous()
	gen, _ := a.fee.begin(studentID, month)
	a.loadFeeDetail(ctx, gen, studentID, month)
	return a.fee.State()
}

// ChangeFeeMonth moves the open form to month and refetches its detail.
func (a *Admin) ChangeFeeMonth(ctx context.Context, month model.Month) (FeeFormState, error) {
	if open, _ := a.fee.isOpen(); !open {
		return FeeFormState{Phase: PhaseIdle}, ErrFeeFormClosed
	}
	gen, studentID := a.fee.begin("", month)
	a.loadFeeDetail(ctx, gen, studentID, month)
	return a.fee.State(), nil
}

func (a *Admin) loadFeeDetail(ctx context.Context, gen uint64, studentID string, month model.Month) {
	d, err := a.api.FeeDetails(ctx, studentID, month)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Stringer("month", month).Msg("fetch fee details")
		if !a.fee.fail(gen, err) {
			metrics.StaleResponse("fee_form")
		}
		return
	}
	if !a.fee.resolve(gen, d) {
		metrics.StaleResponse("fee_form")
	}
}

// FeeForm returns the settlement form snapshot.
func (a *Admin) FeeForm() FeeFormState {
	return a.fee.State()
}

// SubmitFee settles the open form's billing month. The post is awaited; on
// success the roster is refreshed and the form closed.
func (a *Admin) SubmitFee(ctx context.Context, isSettled bool, method model.PaymentMethod) error {
	payload, gen, err := a.fee.settlement(isSettled, method)
	if err != nil {
		return err
	}
	if err := a.api.CreateFee(ctx, payload); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", payload.Student).Msg("submit fee")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Failed to save fee record", err.Error())
		return err
	}
	if !a.fee.closeIf(gen) {
		log.Debug().Str("sid", a.sid).Str("student", payload.Student).Msg("fee form reopened during submit")
	}

	a.mu.Lock()
	hasBatch := a.selectedBatch != ""
	a.mu.Unlock()
	if hasBatch {
		if _, err := a.RefreshRoster(ctx); err != nil {
			log.Warn().Err(err).Str("sid", a.sid).Msg("refresh roster after fee")
		}
	}
	return nil
}

// CloseFeeForm discards the form; an in-flight fetch is dropped on arrival.
func (a *Admin) CloseFeeForm() {
	a.fee.close()
}
