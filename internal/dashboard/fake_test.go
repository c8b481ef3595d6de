package dashboard

import (
	"context"
	"errors"
	"sync"

	"mathify/internal/model"
)

var errBackend = errors.New("backend down")

type call struct {
	op      string
	id      string
	month   model.Month
	payload any
}

// fakeBackend records every call; the *Fn hooks override default answers.
type fakeBackend struct {
	mu    sync.Mutex
	calls []call

	batches       []model.Batch
	summaries     map[string][]model.StudentSummary
	students      []model.Student
	sheetStudent  model.SheetRow
	feeRecords    []model.FeeRecord
	feeSummaries  []model.FeeSummary
	attendance    []model.Attendance
	invoice       []byte
	createStudent error
	createFee     error
	addAttendance error

	feeDetailsFn   func(id string, m model.Month) (*model.FeeDetail, error)
	monthDetailsFn func(id string, m model.Month) (*model.MonthDetails, error)
	studentFn      func(id string) (*model.Student, error)
	createFeeFn    func(payload any) error
}

func (f *fakeBackend) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeBackend) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) Batches(context.Context) ([]model.Batch, error) {
	f.record(call{op: "Batches"})
	if f.batches == nil {
		return nil, errBackend
	}
	return f.batches, nil
}

func (f *fakeBackend) CreateBatch(_ context.Context, b model.NewBatch) error {
	f.record(call{op: "CreateBatch", payload: b})
	f.batches = append(f.batches, model.Batch{ID: "b-new", Name: b.Name, FeesPerHour: b.FeesPerHour})
	return nil
}

func (f *fakeBackend) BatchSummary(_ context.Context, batchID string) ([]model.StudentSummary, error) {
	f.record(call{op: "BatchSummary", id: batchID})
	return f.summaries[batchID], nil
}

func (f *fakeBackend) AllStudents(context.Context) ([]model.Student, error) {
	f.record(call{op: "AllStudents"})
	return f.students, nil
}

func (f *fakeBackend) Student(_ context.Context, id string) (*model.Student, error) {
	f.record(call{op: "Student", id: id})
	if f.studentFn != nil {
		return f.studentFn(id)
	}
	return &model.Student{ID: id, Name: "Student " + id}, nil
}

func (f *fakeBackend) CreateStudent(_ context.Context, payload any) error {
	f.record(call{op: "CreateStudent", payload: payload})
	return f.createStudent
}

func (f *fakeBackend) StudentFromSheet(_ context.Context, row int) (model.SheetRow, error) {
	f.record(call{op: "StudentFromSheet"})
	return f.sheetStudent, nil
}

func (f *fakeBackend) MonthDetails(_ context.Context, id string, m model.Month) (*model.MonthDetails, error) {
	f.record(call{op: "MonthDetails", id: id, month: m})
	if f.monthDetailsFn != nil {
		return f.monthDetailsFn(id, m)
	}
	return &model.MonthDetails{Student: &model.MonthStudent{ID: id}}, nil
}

func (f *fakeBackend) Attendance(_ context.Context, id string) ([]model.Attendance, error) {
	f.record(call{op: "Attendance", id: id})
	return f.attendance, nil
}

func (f *fakeBackend) AddAttendance(_ context.Context, payload any) (string, error) {
	f.record(call{op: "AddAttendance", payload: payload})
	if f.addAttendance != nil {
		return "", f.addAttendance
	}
	return "ok", nil
}

func (f *fakeBackend) FeeDetails(_ context.Context, id string, m model.Month) (*model.FeeDetail, error) {
	f.record(call{op: "FeeDetails", id: id, month: m})
	if f.feeDetailsFn != nil {
		return f.feeDetailsFn(id, m)
	}
	return &model.FeeDetail{BillingMonth: m.String()}, nil
}

func (f *fakeBackend) FeeRecords(_ context.Context, id string) ([]model.FeeRecord, error) {
	f.record(call{op: "FeeRecords", id: id})
	return f.feeRecords, nil
}

func (f *fakeBackend) FeeSummaries(_ context.Context, id string) ([]model.FeeSummary, error) {
	f.record(call{op: "FeeSummaries", id: id})
	return f.feeSummaries, nil
}

func (f *fakeBackend) CreateFee(_ context.Context, payload any) error {
	f.record(call{op: "CreateFee", payload: payload})
	if f.createFeeFn != nil {
		return f.createFeeFn(payload)
	}
	return f.createFee
}

func (f *fakeBackend) Invoice(_ context.Context, id string, m model.Month) ([]byte, error) {
	f.record(call{op: "Invoice", id: id, month: m})
	return f.invoice, nil
}
