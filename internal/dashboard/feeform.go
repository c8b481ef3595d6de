package dashboard

import (
	"sync"

	"mathify/internal/model"
)

// Phase of a month-scoped view.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// FeeFields are the editable fields of the settlement form.
type FeeFields struct {
	BillingMonth  model.Month         `json:"billingMonth"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod,omitempty"`
	IsSettled     bool                `json:"isSettled"`
}

// FeeFormState is a snapshot of the settlement form.
type FeeFormState struct {
	Open      bool             `json:"open"`
	StudentID string           `json:"studentId,omitempty"`
	Phase     Phase            `json:"phase"`
	Month     model.Month      `json:"month"`
	Detail    *model.FeeDetail `json:"detail,omitempty"`
	Fields    FeeFields        `json:"fields"`
	ReadOnly  bool             `json:"readOnly"`
	Error     string           `json:"error,omitempty"`
}

// FeeForm is the settlement form. Changing its billing month is itself a
// data-loading trigger: Idle -> Loading(month) -> Loaded(month, detail),
// keyed by the latest requested month.
type FeeForm struct {
	mu        sync.Mutex
	open      bool
	studentID string
	phase     Phase
	month     model.Month
	gen       generation
	detail    *model.FeeDetail
	fields    FeeFields
	err       string
}

// begin starts a load for month and returns its generation tag. When
// studentID is non-empty the form is (re)opened for that student.
func (f *FeeForm) begin(studentID string, month model.Month) (uint64, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if studentID != "" {
		f.open = true
		f.studentID = studentID
		f.fields = FeeFields{}
		f.detail = nil
	}
	f.phase = PhaseLoading
	f.month = month
	f.fields.BillingMonth = month
	f.err = ""
	return f.gen.next(), f.studentID
}

// resolve applies a fee detail response; false means it was superseded.
func (f *FeeForm) resolve(gen uint64, d *model.FeeDetail) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || !f.gen.current(gen) {
		return false
	}
	f.phase = PhaseLoaded
	f.detail = d
	if m, ok := model.MonthFromRecord(d.BillingMonth); ok {
		f.fields.BillingMonth = m
	}
	f.fields.PaymentMethod = d.PaymentMethod
	f.fields.IsSettled = d.FeesPaid
	return true
}

func (f *FeeForm) fail(gen uint64, err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || !f.gen.current(gen) {
		return false
	}
	f.phase = PhaseFailed
	f.detail = nil
	f.err = err.Error()
	return true
}

func (f *FeeForm) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

func (f *FeeForm) reset() {
	f.open = false
	f.studentID = ""
	f.phase = PhaseIdle
	f.month = model.Month{}
	f.detail = nil
	f.fields = FeeFields{}
	f.err = ""
	f.gen.next()
}

// closeIf closes the form only when gen is still the latest load, so a form
// reopened for another student in the meantime stays open.
func (f *FeeForm) closeIf(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.gen.current(gen) {
		return false
	}
	f.reset()
	return true
}

func (f *FeeForm) isOpen() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.studentID
}

// State returns a snapshot.
func (f *FeeForm) State() FeeFormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return FeeFormState{Phase: PhaseIdle}
	}
	return FeeFormState{
		Open:      true,
		StudentID: f.studentID,
		Phase:     f.phase,
		Month:     f.month,
		Detail:    f.detail,
		Fields:    f.fields,
		ReadOnly:  f.readOnly(),
		Error:     f.err,
	}
}

func (f *FeeForm) readOnly() bool {
	return f.phase == PhaseLoaded && f.detail != nil && f.detail.FeesPaid
}

// settlement validates the form for submission and returns its payload and
// the generation it was taken from.
func (f *FeeForm) settlement(isSettled bool, method model.PaymentMethod) (model.FeeSettlement, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case !f.open:
		return model.FeeSettlement{}, 0, ErrFeeFormClosed
	case f.phase != PhaseLoaded:
		return model.FeeSettlement{}, 0, ErrFeeFormNotReady
	case f.readOnly():
		return model.FeeSettlement{}, 0, ErrFeeSettled
	}
	if method != "" && !method.Valid() {
		return model.FeeSettlement{}, 0, ErrInvalidPayment
	}
	if isSettled && method == "" {
		return model.FeeSettlement{}, 0, ErrInvalidPayment
	}
	return model.FeeSettlement{
		Student:       f.studentID,
		BillingMonth:  f.fields.BillingMonth.String(),
		IsSettled:     isSettled,
		PaymentMethod: method,
	}, f.gen.n, nil
}
