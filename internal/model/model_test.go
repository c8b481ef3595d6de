package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonth(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		previous string
		wantErr  bool
	}{
		{name: "mid year", in: "2024-06", want: "2024-06", previous: "2024-05"},
		{name: "january rolls back a year", in: "2025-01", want: "2025-01", previous: "2024-12"},
		{name: "full date rejected", in: "2025-01-10", wantErr: true},
		{name: "garbage", in: "june", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMonth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
			assert.Equal(t, tt.previous, m.Previous().String())
		})
	}
}

func TestMonthFromRecord(t *testing.T) {
	m, ok := MonthFromRecord("2024-03-01T00:00:00Z")
	require.True(t, ok)
	assert.Equal(t, "2024-03", m.String())

	m, ok = MonthFromRecord("2024-04")
	require.True(t, ok)
	assert.Equal(t, Month{Year: 2024, Month: time.April}, m)

	_, ok = MonthFromRecord("")
	assert.False(t, ok)
}

func TestMonthJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Month `json:"a"`
		B Month `json:"b"`
	}{A: Month{Year: 2024, Month: time.May}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2024-05","b":null}`, string(data))

	var back struct {
		A Month `json:"a"`
		B Month `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Month{Year: 2024, Month: time.May}, back.A)
	assert.True(t, back.B.IsZero())

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"a":"May 2024"}`), &back), ErrInvalidMonth)
}

func TestAttendanceAcceptsLegacyPresentKey(t *testing.T) {
	var recs []Attendance
	require.NoError(t, json.Unmarshal([]byte(`[
		{"_id":"a1","date":"2024-05-02","hours":2,"present":true},
		{"_id":"a2","date":"2024-05-03","hours":1,"isPresent":false},
		{"_id":"a3","date":"2024-05-04","startTime":"09:00","endTime":"10:00","isPresent":true}
	]`), &recs))

	require.Len(t, recs, 3)
	assert.True(t, recs[0].IsPresent)
	assert.False(t, recs[1].IsPresent)
	assert.Equal(t, "09:00", recs[2].StartTime)
}

func TestScheduleHelpers(t *testing.T) {
	assert.True(t, TimeRange{From: "09:00", To: "10:00"}.Complete())
	assert.False(t, TimeRange{From: "09:00"}.Complete())
	assert.True(t, IsWeekday("Sunday"))
	assert.False(t, IsWeekday("sunday"))
	assert.True(t, PaymentUPI.Valid())
	assert.False(t, PaymentMethod("card").Valid())
}

func TestFeeDetailDecodesBackendShape(t *testing.T) {
	body := `{"studentName":"Asha","billingMonth":"2024-04","totalClasses":4,"totalHoursAttended":12,"totalFeeExpected":3600,"feesPaid":false}`
	var d FeeDetail
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	assert.Equal(t, "Asha", d.StudentName)
	assert.Equal(t, 12.0, d.TotalHours)
	assert.Equal(t, 3600.0, d.TotalFeeExpected)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"totalHoursAttended":12`)
	assert.Contains(t, string(out), `"studentName":"Asha"`)
}

func TestStudentTolerantFields(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		hours     Text
		batch     *BatchRef
		batchJSON string
	}{
		{
			name:      "string hours and batch id",
			body:      `{"name":"A","desiredNumberOfHours":"6","batch":"b1"}`,
			hours:     "6",
			batch:     &BatchRef{ID: "b1"},
			batchJSON: `"batch":"b1"`,
		},
		{
			name:      "numeric hours and populated batch",
			body:      `{"name":"A","desiredNumberOfHours":6,"batch":{"_id":"b1","name":"Evening"}}`,
			hours:     "6",
			batch:     &BatchRef{ID: "b1", Name: "Evening"},
			batchJSON: `"batch":"b1"`,
		},
		{
			name: "nulls",
			body: `{"name":"A","desiredNumberOfHours":null,"batch":null}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st Student
			require.NoError(t, json.Unmarshal([]byte(tt.body), &st))
			assert.Equal(t, tt.hours, st.DesiredNumberOfHours)
			assert.Equal(t, tt.batch, st.Batch)
			if tt.batchJSON != "" {
				out, err := json.Marshal(st)
				require.NoError(t, err)
				assert.Contains(t, string(out), tt.batchJSON)
			}
		})
	}

	var st Student
	assert.Error(t, json.Unmarshal([]byte(`{"desiredNumberOfHours":[1]}`), &st))
}

func TestSheetRowKeepsEveryColumn(t *testing.T) {
	var row SheetRow
	require.NoError(t, json.Unmarshal([]byte(`{"name":"A","email":"a@x","address":"12 Road","school":"DPS","class":"10"}`), &row))
	assert.Equal(t, "A", row.Str("name"))
	assert.Equal(t, "", row.Str("missing"))

	withFee, err := row.With("feesPerHour", 300)
	require.NoError(t, err)
	_, touched := row["feesPerHour"]
	assert.False(t, touched)

	out, err := json.Marshal(withFee)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A","email":"a@x","address":"12 Road","school":"DPS","class":"10","feesPerHour":300}`, string(out))
}
