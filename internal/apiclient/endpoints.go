package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"mathify/internal/model"
)

// The backend is not consistent about envelopes: some lists come bare, some
// under "data", fee summaries under "feesSummary". unwrap returns the value
// under the first key present, or the document itself.
func unwrap(data []byte, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return trimmed
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return trimmed
}

func decodeList[T any](method, path string, data []byte, keys ...string) ([]T, error) {
	raw := unwrap(data, keys...)
	if len(raw) == 0 || raw[0] != '[' {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s %s: decode list: %w", method, path, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (s *Caller) list(ctx context.Context, path string) ([]byte, error) {
	return s.Request(ctx, http.MethodGet, path, nil, nil)
}

func seg(id string) string { return url.PathEscape(id) }

// Batches lists all batches.
func (s *Caller) Batches(ctx context.Context) ([]model.Batch, error) {
	const path = "/api/batches/getAllBatches"
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Batch](http.MethodGet, path, data, "data", "batches")
}

// CreateBatch creates a batch.
func (s *Caller) CreateBatch(ctx context.Context, b model.NewBatch) error {
	return s.do(ctx, http.MethodPost, "/api/batches/createNewBatch", b, nil, nil)
}

// BatchSummary lists per-student summaries for a batch.
func (s *Caller) BatchSummary(ctx context.Context, batchID string) ([]model.StudentSummary, error) {
	path := "/api/students/allSummary/" + seg(batchID)
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.StudentSummary](http.MethodGet, path, data, "data")
}

// AllStudents lists every student.
func (s *Caller) AllStudents(ctx context.Context) ([]model.Student, error) {
	const path = "/api/students/fetchAllStudents"
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Student](http.MethodGet, path, data, "data", "students")
}

// Student fetches one profile.
func (s *Caller) Student(ctx context.Context, id string) (*model.Student, error) {
	path := "/api/students/fetchStudent/" + seg(id)
	data, err := s.Request(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var st model.Student
	if err := json.Unmarshal(unwrap(data, "data", "student"), &st); err != nil {
		return nil, fmt.Errorf("GET %s: decode student: %w", path, err)
	}
	return &st, nil
}

// CreateStudent posts a new student. payload is either model.NewStudent or a
// sheet-imported profile with fee and schedule.
func (s *Caller) CreateStudent(ctx context.Context, payload any) error {
	return s.do(ctx, http.MethodPost, "/api/students/createNewStudent", payload, nil, nil)
}

// StudentFromSheet imports a pre-entered row of the enrolment sheet. The
// row is returned whole; a missing row yields nil.
func (s *Caller) StudentFromSheet(ctx context.Context, rowNumber int) (model.SheetRow, error) {
	const path = "/api/students/fetchStudentDetailsFromSheet"
	data, err := s.Request(ctx, http.MethodPost, path, map[string]int{"rowNumber": rowNumber}, nil)
	if err != nil {
		return nil, err
	}
	raw := unwrap(data, "data")
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var row model.SheetRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("POST %s: decode sheet row: %w", path, err)
	}
	return row, nil
}

// MonthDetails fetches a student and their attendance for one month.
func (s *Caller) MonthDetails(ctx context.Context, id string, month model.Month) (*model.MonthDetails, error) {
	path := "/api/students/studentMonthDetails/" + seg(id) + "/" + month.String()
	var out model.MonthDetails
	if err := s.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Attendance == nil {
		out.Attendance = []model.Attendance{}
	}
	return &out, nil
}

// Attendance fetches a student's full attendance history.
func (s *Caller) Attendance(ctx context.Context, id string) ([]model.Attendance, error) {
	path := "/api/attendance/getAttendance/" + seg(id)
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Attendance](http.MethodGet, path, data, "data")
}

// AddAttendance posts one record or a slice of records and returns the
// backend's message, if any.
func (s *Caller) AddAttendance(ctx context.Context, payload any) (string, error) {
	var out struct {
		Message string `json:"message"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/attendance/addAttendance", payload, nil, &out); err != nil {
		return "", err
	}
	if out.Data.Message != "" {
		return out.Data.Message, nil
	}
	return out.Message, nil
}

// FeeDetails fetches the fee computation for one billing month.
func (s *Caller) FeeDetails(ctx context.Context, id string, month model.Month) (*model.FeeDetail, error) {
	path := "/api/fees/feeDetails/" + seg(id) + "/" + month.String()
	var out model.FeeDetail
	if err := s.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FeeRecords fetches the fee history.
func (s *Caller) FeeRecords(ctx context.Context, id string) ([]model.FeeRecord, error) {
	path := "/api/fees/studentFeeRecords/" + seg(id)
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.FeeRecord](http.MethodGet, path, data, "data")
}

// FeeSummaries fetches the per-month fee summary list.
func (s *Caller) FeeSummaries(ctx context.Context, id string) ([]model.FeeSummary, error) {
	path := "/api/fees/getStudentFees/" + seg(id)
	data, err := s.list(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeList[model.FeeSummary](http.MethodGet, path, data, "feesSummary", "data")
}

// CreateFee creates or settles a fee record.
func (s *Caller) CreateFee(ctx context.Context, payload any) error {
	return s.do(ctx, http.MethodPost, "/api/fees/createNewFees", payload, nil, nil)
}

// Invoice downloads the PDF invoice for a billing month.
func (s *Caller) Invoice(ctx context.Context, id string, month model.Month) ([]byte, error) {
	path := "/api/fees/generateInvoice/" + seg(id)
	return s.Request(ctx, http.MethodGet, path, nil, url.Values{"month": {month.String()}}, Binary())
}

// InvoiceFilename is the save-as name offered for an invoice download.
func InvoiceFilename(studentID string, month model.Month) string {
	return fmt.Sprintf("invoice-%s-%s.pdf", studentID, month)
}
