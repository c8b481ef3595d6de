package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"mathify/internal/apiclient"
	"mathify/internal/model"
	"mathify/internal/notify"
)

// The per-student panels of the students index. Each one is keyed only by
// a student id and refetches on every open.

// StudentAttendance loads a student's full attendance history.
func (a *Admin) StudentAttendance(ctx context.Context, studentID string) ([]model.Attendance, error) {
	recs, err := a.api.Attendance(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Msg("fetch attendance")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Error fetching attendance", apiMessage(err, "Failed to fetch attendance records."))
		return []model.Attendance{}, err
	}
	return recs, nil
}

// AddStudentAttendance records one timed attendance entry and returns the
// refreshed history.
func (a *Admin) AddStudentAttendance(ctx context.Context, rec model.TimedAttendance) ([]model.Attendance, error) {
	if rec.StudentID == "" || rec.StartTime == "" || rec.EndTime == "" || rec.Date == "" {
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Missing Fields", "Please fill all the required fields.")
		return nil, ErrMissingFields
	}
	if !validDate(rec.Date) {
		return nil, ErrInvalidDate
	}
	if !validClock(rec.StartTime) || !validClock(rec.EndTime) {
		return nil, ErrInvalidTime
	}

	msg, err := a.api.AddAttendance(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", rec.StudentID).Msg("add attendance")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Error adding attendance", apiMessage(err, "Failed to add attendance."))
		return nil, err
	}
	if msg == "" {
		msg = "Attendance added successfully"
	}
	notify.Send(ctx, a.feed, a.sid, notify.Success, "Attendance added successfully", msg)
	return a.StudentAttendance(ctx, rec.StudentID)
}

// StudentFees loads a student's fee summary list.
func (a *Admin) StudentFees(ctx context.Context, studentID string) ([]model.FeeSummary, error) {
	fees, err := a.api.FeeSummaries(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Msg("fetch fee summaries")
		notify.Send(ctx, a.feed, a.sid, notify.Error, "Failed to fetch fee records", "")
		return []model.FeeSummary{}, err
	}
	a.mu.Lock()
	a.feePanels[studentID] = fees
	a.mu.Unlock()
	return fees, nil
}

// MarkFeePaid settles one billing month from the fee panel. method defaults
// to cash and paidOn to now. A month the panel last saw as settled is
// refused.
func (a *Admin) MarkFeePaid(ctx context.Context, studentID string, month model.Month, method model.PaymentMethod, paidOn time.Time) ([]model.FeeSummary, error) {
	if method == "" {
		method = model.PaymentCash
	}
	if !method.Valid() {
		return nil, ErrInvalidPayment
	}
	if paidOn.IsZero() {
		paidOn = a.now()
	}
	if a.settledInPanel(studentID, month) {
		return nil, ErrFeeSettled
	}

	payment := model.FeePayment{
		StudentID:     studentID,
		BillingMonth:  month.String(),
		PaymentMethod: method,
		PaidOn:        paidOn.UTC(),
	}
	if err := a.api.CreateFee(ctx, payment); err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Stringer("month", month).Msg("mark fee paid")
		notify.Send(ctx, a.feed, a.sid, notify.Error, apiMessage(err, "Failed to mark fees as paid"), "")
		return nil, err
	}
	notify.Send(ctx, a.feed, a.sid, notify.Success, "Fee marked as paid successfully", "")
	return a.StudentFees(ctx, studentID)
}

func (a *Admin) settledInPanel(studentID string, month model.Month) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.feePanels[studentID] {
		if m, ok := model.MonthFromRecord(f.BillingMonth); ok && m == month {
			return f.IsSettled
		}
	}
	return false
}

// Invoice downloads the invoice PDF for a student's billing month.
func (a *Admin) Invoice(ctx context.Context, studentID string, month model.Month) (Invoice, error) {
	return downloadInvoice(ctx, a.api, a.feed, a.sid, studentID, month)
}

// StudentProfile loads the read-only profile view.
func (a *Admin) StudentProfile(ctx context.Context, studentID string) (*model.Student, error) {
	st, err := a.api.Student(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Str("sid", a.sid).Str("student", studentID).Msg("fetch student profile")
		return nil, err
	}
	return st, nil
}

func downloadInvoice(ctx context.Context, api Backend, feed notify.Feed, sid, studentID string, month model.Month) (Invoice, error) {
	data, err := api.Invoice(ctx, studentID, month)
	if err != nil {
		log.Error().Err(err).Str("sid", sid).Str("student", studentID).Stringer("month", month).Msg("download invoice")
		notify.Send(ctx, feed, sid, notify.Error, "Failed to download invoice", "")
		return Invoice{}, err
	}
	return Invoice{Filename: apiclient.InvoiceFilename(studentID, month), Data: data}, nil
}

// apiMessage prefers the backend's own error text.
func apiMessage(err error, fallback string) string {
	if e, ok := apiclient.AsError(err); ok {
		if m := e.Message(); m != "" {
			return m
		}
	}
	return fallback
}
