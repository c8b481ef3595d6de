package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathify/internal/model"
	"mathify/internal/notify"
)

var fixedNow = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

func newTestAdmin(api *fakeBackend) (*Admin, *notify.InMemory) {
	feed := notify.NewInMemory(10)
	a := NewAdmin(api, feed, "sid-1")
	a.now = func() time.Time { return fixedNow }
	a.attendanceDate = fixedNow.Format(dateLayout)
	return a, feed
}

func summaries(ids ...string) []model.StudentSummary {
	out := make([]model.StudentSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.StudentSummary{Student: model.StudentRef{ID: id, Name: "n-" + id}})
	}
	return out
}

func TestLoadBatchesFailureLeavesEmptyList(t *testing.T) {
	a, _ := newTestAdmin(&fakeBackend{})
	got := a.LoadBatches(context.Background())
	assert.Empty(t, got)
	assert.NotNil(t, a.State().Batches)
}

func TestSelectBatchAppliesRosterDefaults(t *testing.T) {
	api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1", "s2")}}
	a, _ := newTestAdmin(api)

	roster, err := a.SelectBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	for _, r := range roster {
		assert.Equal(t, 1.0, r.StudyHours)
		assert.True(t, r.IsPresent)
	}
	assert.Empty(t, api.callsOf("AddAttendance"))
}

func TestSubmitAttendanceSendsOneRequestWithEveryStudent(t *testing.T) {
	api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1", "s2", "s3")}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()

	_, err := a.SelectBatch(ctx, "b1")
	require.NoError(t, err)
	hours := 2.5
	absent := false
	_, err = a.EditRosterEntry("s2", &hours, &absent)
	require.NoError(t, err)
	require.NoError(t, a.SetAttendanceDate("2025-03-10"))

	n, err := a.SubmitAttendance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	posts := api.callsOf("AddAttendance")
	require.Len(t, posts, 1)
	rows, ok := posts[0].payload.([]model.AttendanceEntry)
	require.True(t, ok)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "2025-03-10", r.Date)
	}
	assert.Equal(t, model.AttendanceEntry{Student: "s2", IsPresent: false, Hours: 2.5, Date: "2025-03-10"}, rows[1])
	assert.Equal(t, model.AttendanceEntry{Student: "s1", IsPresent: true, Hours: 1, Date: "2025-03-10"}, rows[0])

	// roster refreshed afterwards
	assert.Len(t, api.callsOf("BatchSummary"), 2)
}

func TestSubmitAttendanceNeedsBatchAndRoster(t *testing.T) {
	api := &fakeBackend{summaries: map[string][]model.StudentSummary{}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()

	_, err := a.SubmitAttendance(ctx)
	assert.ErrorIs(t, err, ErrNoBatchSelected)

	_, _ = a.SelectBatch(ctx, "empty")
	_, err = a.SubmitAttendance(ctx)
	assert.ErrorIs(t, err, ErrEmptyRoster)
	assert.Empty(t, api.callsOf("AddAttendance"))
}

func TestEditRosterEntryValidation(t *testing.T) {
	api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1")}}
	a, _ := newTestAdmin(api)
	_, _ = a.SelectBatch(context.Background(), "b1")

	zero := 0.0
	_, err := a.EditRosterEntry("s1", &zero, nil)
	assert.ErrorIs(t, err, ErrInvalidStudyHours)
	_, err = a.EditRosterEntry("nobody", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownStudent)
	assert.ErrorIs(t, a.SetAttendanceDate("10/03/2025"), ErrInvalidDate)
}

func TestCreateStudentRefreshesOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	newStudent := model.NewStudent{Name: "Ravi", Email: "ravi@example.com"}

	t.Run("success", func(t *testing.T) {
		api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1")}}
		a, _ := newTestAdmin(api)
		_, _ = a.SelectBatch(ctx, "b1")

		require.NoError(t, a.CreateStudent(ctx, newStudent))
		posted := api.callsOf("CreateStudent")
		require.Len(t, posted, 1)
		payload := posted[0].payload.(model.NewStudent)
		assert.Equal(t, "b1", payload.Batch)
		assert.False(t, payload.IsAdmin)
		assert.Len(t, api.callsOf("BatchSummary"), 2)
	})

	t.Run("failure", func(t *testing.T) {
		api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1")}, createStudent: errBackend}
		a, feed := newTestAdmin(api)
		_, _ = a.SelectBatch(ctx, "b1")

		assert.ErrorIs(t, a.CreateStudent(ctx, newStudent), errBackend)
		assert.Len(t, api.callsOf("BatchSummary"), 1)
		notices, _ := feed.Drain(ctx, "sid-1")
		require.Len(t, notices, 1)
		assert.Equal(t, notify.Error, notices[0].Level)
	})
}

func TestCreateBatchReloadsBatches(t *testing.T) {
	api := &fakeBackend{batches: []model.Batch{}}
	a, _ := newTestAdmin(api)
	require.NoError(t, a.CreateBatch(context.Background(), model.NewBatch{Name: "Evening", FeesPerHour: 300}))
	assert.Len(t, api.callsOf("Batches"), 1)
	assert.Len(t, a.State().Batches, 1)
}

func TestOpenFeeFormDefaultsToPreviousMonth(t *testing.T) {
	api := &fakeBackend{}
	a, _ := newTestAdmin(api)

	st := a.OpenFeeForm(context.Background(), "s1")
	assert.Equal(t, model.Month{Year: 2025, Month: time.February}, st.Month)
	assert.Equal(t, PhaseLoaded, st.Phase)
	calls := api.callsOf("FeeDetails")
	require.Len(t, calls, 1)
	assert.Equal(t, "s1", calls[0].id)
}

func TestChangeFeeMonthFetchesOnceAndRepopulates(t *testing.T) {
	april := model.Month{Year: 2025, Month: time.April}
	api := &fakeBackend{feeDetailsFn: func(_ string, m model.Month) (*model.FeeDetail, error) {
		if m == april {
			return &model.FeeDetail{BillingMonth: "2025-04", FeesPaid: false, PaymentMethod: model.PaymentUPI, TotalFeeExpected: 1200}, nil
		}
		return &model.FeeDetail{BillingMonth: m.String(), PaymentMethod: model.PaymentCash}, nil
	}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()
	a.OpenFeeForm(ctx, "s1")

	st, err := a.ChangeFeeMonth(ctx, april)
	require.NoError(t, err)

	var forApril int
	for _, c := range api.callsOf("FeeDetails") {
		if c.month == april {
			forApril++
		}
	}
	assert.Equal(t, 1, forApril)
	assert.Equal(t, model.PaymentUPI, st.Fields.PaymentMethod)
	assert.False(t, st.Fields.IsSettled)
	assert.Equal(t, april, st.Fields.BillingMonth)
}

func TestChangeFeeMonthDropsSupersededResponse(t *testing.T) {
	march := model.Month{Year: 2025, Month: time.March}
	april := model.Month{Year: 2025, Month: time.April}
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeBackend{feeDetailsFn: func(_ string, m model.Month) (*model.FeeDetail, error) {
		if m == march {
			close(started)
			<-release
			return &model.FeeDetail{BillingMonth: "2025-03", FeesPaid: true, PaymentMethod: model.PaymentCash}, nil
		}
		return &model.FeeDetail{BillingMonth: m.String(), PaymentMethod: model.PaymentUPI}, nil
	}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()
	a.OpenFeeForm(ctx, "s1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.ChangeFeeMonth(ctx, march)
	}()
	<-started
	_, err := a.ChangeFeeMonth(ctx, april)
	require.NoError(t, err)
	close(release)
	<-done

	st := a.FeeForm()
	assert.Equal(t, april, st.Month)
	assert.Equal(t, model.PaymentUPI, st.Fields.PaymentMethod)
	assert.False(t, st.ReadOnly)
}

func TestSettledFeeIsReadOnly(t *testing.T) {
	api := &fakeBackend{feeDetailsFn: func(_ string, m model.Month) (*model.FeeDetail, error) {
		return &model.FeeDetail{BillingMonth: m.String(), FeesPaid: true, PaymentMethod: model.PaymentCash}, nil
	}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()

	st := a.OpenFeeForm(ctx, "s1")
	assert.True(t, st.ReadOnly)
	assert.True(t, st.Fields.IsSettled)
	assert.ErrorIs(t, a.SubmitFee(ctx, true, model.PaymentUPI), ErrFeeSettled)
	assert.Empty(t, api.callsOf("CreateFee"))
}

func TestSubmitFeePostsAndCloses(t *testing.T) {
	api := &fakeBackend{summaries: map[string][]model.StudentSummary{"b1": summaries("s1")}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()
	_, _ = a.SelectBatch(ctx, "b1")
	a.OpenFeeForm(ctx, "s1")

	assert.ErrorIs(t, a.SubmitFee(ctx, true, ""), ErrInvalidPayment)
	assert.ErrorIs(t, a.SubmitFee(ctx, true, "card"), ErrInvalidPayment)

	require.NoError(t, a.SubmitFee(ctx, true, model.PaymentCash))
	posts := api.callsOf("CreateFee")
	require.Len(t, posts, 1)
	assert.Equal(t, model.FeeSettlement{Student: "s1", BillingMonth: "2025-02", IsSettled: true, PaymentMethod: model.PaymentCash}, posts[0].payload)
	assert.False(t, a.FeeForm().Open)
	assert.Len(t, api.callsOf("BatchSummary"), 2)

	assert.ErrorIs(t, a.SubmitFee(ctx, true, model.PaymentCash), ErrFeeFormClosed)
}

func TestSubmitFeeFailureKeepsFormOpen(t *testing.T) {
	api := &fakeBackend{createFee: errBackend}
	a, feed := newTestAdmin(api)
	ctx := context.Background()
	a.OpenFeeForm(ctx, "s1")

	assert.ErrorIs(t, a.SubmitFee(ctx, false, ""), errBackend)
	assert.True(t, a.FeeForm().Open)
	notices, _ := feed.Drain(ctx, "sid-1")
	assert.Len(t, notices, 1)
}

func TestSubmitFeeLeavesReopenedFormOpen(t *testing.T) {
	posted := make(chan struct{})
	release := make(chan struct{})
	api := &fakeBackend{createFeeFn: func(any) error {
		close(posted)
		<-release
		return nil
	}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()
	a.OpenFeeForm(ctx, "s1")

	errCh := make(chan error, 1)
	go func() { errCh <- a.SubmitFee(ctx, true, model.PaymentUPI) }()
	<-posted
	a.OpenFeeForm(ctx, "s2")
	close(release)
	require.NoError(t, <-errCh)

	st := a.FeeForm()
	assert.True(t, st.Open)
	assert.Equal(t, "s2", st.StudentID)
	assert.Equal(t, PhaseLoaded, st.Phase)
}

func TestCloseFeeFormDropsInFlightResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeBackend{feeDetailsFn: func(_ string, m model.Month) (*model.FeeDetail, error) {
		close(started)
		<-release
		return &model.FeeDetail{BillingMonth: m.String()}, nil
	}}
	a, _ := newTestAdmin(api)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.OpenFeeForm(context.Background(), "s1")
	}()
	<-started
	a.CloseFeeForm()
	close(release)
	<-done

	st := a.FeeForm()
	assert.False(t, st.Open)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestDetailViewMonthChangeRefetchesMonthOnly(t *testing.T) {
	api := &fakeBackend{feeRecords: []model.FeeRecord{{Month: "2025-01", FeesPaid: true}}}
	a, _ := newTestAdmin(api)
	ctx := context.Background()

	st := a.OpenDetail(ctx, "s1")
	assert.Equal(t, model.Month{Year: 2025, Month: time.March}, st.Month)
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.Len(t, st.FeeRecords, 1)

	jan := model.Month{Year: 2025, Month: time.January}
	st, err := a.ChangeDetailMonth(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, jan, st.Month)
	assert.Len(t, api.callsOf("MonthDetails"), 2)
	assert.Len(t, api.callsOf("FeeRecords"), 1)

	a.CloseDetail()
	_, err = a.ChangeDetailMonth(ctx, jan)
	assert.ErrorIs(t, err, ErrDetailClosed)
}
