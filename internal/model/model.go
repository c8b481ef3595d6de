// Package model holds the records exchanged with the Mathify backend. The
// backend owns their definitions; these types only name the fields the web
// front-end reads or writes.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// User is the identity established at login.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Avatar  string `json:"avatar,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// Batch groups students sharing an hourly rate.
type Batch struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	FeesPerHour float64 `json:"feesPerHour"`
}

// NewBatch is the create-batch payload.
type NewBatch struct {
	Name        string  `json:"name" binding:"required"`
	FeesPerHour float64 `json:"feesPerHour" binding:"required,gt=0"`
}

// TimeRange is one weekday slot, HH:mm on both ends.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Complete reports whether both ends are set.
func (r TimeRange) Complete() bool {
	return r.From != "" && r.To != ""
}

// Schedule maps a weekday name to its slot.
type Schedule map[string]TimeRange

// Weekdays in display order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// IsWeekday reports whether day is one of Weekdays.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Student is a full student profile.
type Student struct {
	ID                      string   `json:"_id,omitempty"`
	Name                    string   `json:"name"`
	Email                   string   `json:"email"`
	Phone                   string   `json:"phone,omitempty"`
	ParentsName             string   `json:"parentsName,omitempty"`
	DateOfBirth             string   `json:"dateOfBirth,omitempty"`
	Gender                  string   `json:"gender,omitempty"`
	PreferredModeOfLearning string   `json:"preferredModeOfLearning,omitempty"`
	ObjectiveOfEnrolling    string   `json:"objectiveOfEnrolling,omitempty"`
	ExaminationsTargetting  string   `json:"examinationsTargetting,omitempty"`
	DesiredNumberOfHours    Text      `json:"desiredNumberOfHours,omitempty"`
	FeesPerHour             float64   `json:"feesPerHour,omitempty"`
	Schedule                Schedule  `json:"schedule,omitempty"`
	Batch                   *BatchRef `json:"batch,omitempty"`
	BatchName               string    `json:"batchName,omitempty"`
}

// Text is a free-form profile value the backend sends either as a string or
// as a bare number or bool.
type Text string

// UnmarshalJSON keeps strings as they are and any other scalar as its
// literal text. null leaves t empty.
func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		*t = Text(data)
		return nil
	}
	return fmt.Errorf("model: %s is not a scalar", data)
}

// BatchRef is a student's batch, sent either as its id or populated.
type BatchRef struct {
	ID   string `json:"_id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts "id" or {"_id": ..., "name": ...}.
func (b *BatchRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*b = BatchRef{ID: id}
		return nil
	}
	type plain BatchRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = BatchRef(p)
	return nil
}

// MarshalJSON writes the id only, the form the backend accepts on writes.
func (b BatchRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.ID)
}

// SheetRow is one enrolment-sheet row as the backend returns it. Every
// column is kept so none is lost when the row is posted back.
type SheetRow map[string]json.RawMessage

// Str returns a string column, or "" when it is absent or not a string.
func (r SheetRow) Str(key string) string {
	var s string
	if raw, ok := r[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// With returns a copy of r with key set to v.
func (r SheetRow) With(key string, v any) (SheetRow, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(SheetRow, len(r)+1)
	for k, col := range r {
		out[k] = col
	}
	out[key] = raw
	return out, nil
}

// StudentRef is the short student shape embedded in summaries.
type StudentRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// StudentSummary is one row of the per-batch roster.
type StudentSummary struct {
	Student                  StudentRef `json:"student"`
	TotalClassesThisMonth    float64    `json:"totalClassesThisMonth"`
	FeesPaidForPreviousMonth bool       `json:"feesPaidForPreviousMonth"`
}

// NewStudent is the create-student payload from the admin form.
type NewStudent struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Phone       string  `json:"phone"`
	FeesPerHour float64 `json:"feesPerHour,omitempty"`
	IsAdmin     bool    `json:"isAdmin"`
	Batch       string  `json:"batch"`
}

// MonthStudent is the student block of a month-details response.
type MonthStudent struct {
	ID           string  `json:"_id,omitempty"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone,omitempty"`
	BatchName    string  `json:"batchName,omitempty"`
	TotalClasses float64 `json:"totalClasses"`
	TotalHours   float64 `json:"totalHours"`
	FeesPaid     bool    `json:"feesPaid"`
	FeesDue      float64 `json:"feesDue"`
}

// MonthDetails is a student plus their attendance for one month.
type MonthDetails struct {
	Student    *MonthStudent `json:"student"`
	Attendance []Attendance  `json:"attendance"`
}

// Attendance is one attendance record.
type Attendance struct {
	ID        string  `json:"_id,omitempty"`
	Student   string  `json:"student,omitempty"`
	Date      string  `json:"date"`
	StartTime string  `json:"startTime,omitempty"`
	EndTime   string  `json:"endTime,omitempty"`
	Hours     float64 `json:"hours"`
	IsPresent bool    `json:"isPresent"`
}

// UnmarshalJSON accepts both isPresent and the older present key.
func (a *Attendance) UnmarshalJSON(data []byte) error {
	type plain Attendance
	var aux struct {
		plain
		Present *bool `json:"present"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = Attendance(aux.plain)
	if aux.Present != nil {
		a.IsPresent = *aux.Present
	}
	return nil
}

// AttendanceEntry is one row of a batch attendance submission.
type AttendanceEntry struct {
	Student   string  `json:"student"`
	IsPresent bool    `json:"isPresent"`
	Hours     float64 `json:"hours"`
	Date      string  `json:"date"`
}

// TimedAttendance is a single attendance record with explicit times.
type TimedAttendance struct {
	StudentID string `json:"studentId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Date      string `json:"date"`
	IsPresent bool   `json:"isPresent"`
}

// PaymentMethod is how a fee was settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentUPI  PaymentMethod = "UPI"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentUPI
}

// FeeDetail is the fee computation for one billing month.
type FeeDetail struct {
	StudentName      string        `json:"studentName,omitempty"`
	BillingMonth     string        `json:"billingMonth"`
	TotalClasses     float64       `json:"totalClasses"`
	TotalHours       float64       `json:"totalHoursAttended"`
	TotalFeeExpected float64       `json:"totalFeeExpected"`
	FeesPaid         bool          `json:"feesPaid"`
	PaymentMethod    PaymentMethod `json:"paymentMethod,omitempty"`
}

// FeeRecord is one entry of the fee history.
type FeeRecord struct {
	Month            string  `json:"month"`
	TotalFeeExpected float64 `json:"totalFeeExpected"`
	FeesPaid         bool    `json:"feesPaid"`
}

// FeeSummary is one billing month of the fee summary list.
type FeeSummary struct {
	BillingMonth  string        `json:"billingMonth"`
	TotalClasses  float64       `json:"totalClasses"`
	TotalHours    float64       `json:"totalHours"`
	PayableAmount float64       `json:"payableAmount"`
	IsSettled     bool          `json:"isSettled"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	PaidOn        *time.Time    `json:"paidOn,omitempty"`
}

// FeeSettlement is the create-fee payload of the monolithic dashboard.
type FeeSettlement struct {
	Student       string        `json:"student"`
	BillingMonth  string        `json:"billingMonth"`
	IsSettled     bool          `json:"isSettled"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
}

// FeePayment is the create-fee payload of the fee panel.
type FeePayment struct {
	StudentID     string        `json:"studentId"`
	BillingMonth  string        `json:"billingMonth"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaidOn        time.Time     `json:"paidOn"`
}

// ErrInvalidMonth is returned for anything that is not YYYY-MM.
var ErrInvalidMonth = errors.New("month must be YYYY-MM")

// Month is a billing month.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return MonthOf(t), nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Previous returns the calendar month before m.
func (m Month) Previous() Month {
	return MonthOf(time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0))
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool {
	return m.Year == 0
}

func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout)
}

// MarshalJSON encodes m as "YYYY-MM", or null when unset.
func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "YYYY-MM" or null.
func (m *Month) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Month{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidMonth
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthFromRecord reads a billing month the backend may send either as
// YYYY-MM or as a full timestamp.
func MonthFromRecord(s string) (Month, bool) {
	if m, err := ParseMonth(s); err == nil {
		return m, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return MonthOf(t), true
	}
	return Month{}, false
}
