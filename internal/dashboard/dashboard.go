// Package dashboard holds the per-session screen state of the admin and
// student dashboards and orchestrates the backend calls each user action
// triggers. Nothing here computes fees or attendance; the backend does.
package dashboard

import (
	"context"
	"errors"
	"time"

	"mathify/internal/model"
)

var (
	ErrNoBatchSelected   = errors.New("select a batch first")
	ErrEmptyRoster       = errors.New("no students loaded for the selected batch")
	ErrUnknownStudent    = errors.New("student is not in the loaded roster")
	ErrFeeFormClosed     = errors.New("fee form is not open")
	ErrFeeFormNotReady   = errors.New("fee details are still loading")
	ErrFeeSettled        = errors.New("fee record is settled and read-only")
	ErrDetailClosed      = errors.New("student detail view is not open")
	ErrImportIncomplete  = errors.New("fee per hour and at least one complete weekday are required")
	ErrNothingImported   = errors.New("fetch a sheet row first")
	ErrMissingFields     = errors.New("please fill all the required fields")
	ErrInvalidDate       = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTime       = errors.New("time must be HH:mm")
	ErrInvalidPayment    = errors.New("payment method must be cash or UPI")
	ErrInvalidRow        = errors.New("row number must be positive")
	ErrInvalidStudyHours = errors.New("study hours must be positive")
)

// Backend is the slice of the Mathify API the dashboards drive.
// *apiclient.Caller implements it.
type Backend interface {
	Batches(ctx context.Context) ([]model.Batch, error)
	CreateBatch(ctx context.Context, b model.NewBatch) error
	BatchSummary(ctx context.Context, batchID string) ([]model.StudentSummary, error)
	AllStudents(ctx context.Context) ([]model.Student, error)
	Student(ctx context.Context, id string) (*model.Student, error)
	CreateStudent(ctx context.Context, payload any) error
	StudentFromSheet(ctx context.Context, rowNumber int) (model.SheetRow, error)
	MonthDetails(ctx context.Context, id string, month model.Month) (*model.MonthDetails, error)
	Attendance(ctx context.Context, id string) ([]model.Attendance, error)
	AddAttendance(ctx context.Context, payload any) (string, error)
	FeeDetails(ctx context.Context, id string, month model.Month) (*model.FeeDetail, error)
	FeeRecords(ctx context.Context, id string) ([]model.FeeRecord, error)
	FeeSummaries(ctx context.Context, id string) ([]model.FeeSummary, error)
	CreateFee(ctx context.Context, payload any) error
	Invoice(ctx context.Context, id string, month model.Month) ([]byte, error)
}

// Invoice is a downloaded invoice and the name to save it under.
type Invoice struct {
	Filename string
	Data     []byte
}

const dateLayout = "2006-01-02"

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// generation tags month-scoped fetches so that a response for a month the
// user has since moved away from is dropped instead of overwriting newer
// state. Callers hold the owning view's lock.
type generation struct {
	n uint64
}

func (g *generation) next() uint64 {
	g.n++
	return g.n
}

func (g *generation) current(n uint64) bool {
	return g.n == n
}
