package httpapi

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mathify/internal/dashboard"
	"mathify/internal/model"
)

// AdminHome loads the batch list and returns the whole dashboard.
func (h *Handler) AdminHome(c *gin.Context) {
	a := h.admin(c)
	a.LoadBatches(c.Request.Context())
	c.JSON(http.StatusOK, a.State())
}

// ---------- Batches and roster ----------

func (h *Handler) ListBatches(c *gin.Context) {
	batches := h.admin(c).LoadBatches(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) CreateBatch(c *gin.Context) {
	var req model.NewBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a := h.admin(c)
	if err := a.CreateBatch(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"batches": a.State().Batches})
}

type selectBatchRequest struct {
	BatchID string `json:"batchId" binding:"required"`
}

func (h *Handler) SelectBatch(c *gin.Context) {
	var req selectBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	roster, err := h.admin(c).SelectBatch(c.Request.Context(), req.BatchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batchId": req.BatchID, "roster": roster})
}

func (h *Handler) Roster(c *gin.Context) {
	st := h.admin(c).State()
	c.JSON(http.StatusOK, gin.H{
		"batchId":        st.SelectedBatch,
		"roster":         st.Roster,
		"loading":        st.RosterLoading,
		"attendanceDate": st.AttendanceDate,
	})
}

type rosterEditRequest struct {
	StudyHours *float64 `json:"studyHours" binding:"omitempty,gt=0"`
	IsPresent  *bool    `json:"isPresent"`
}

func (h *Handler) EditRoster(c *gin.Context) {
	var req rosterEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	entry, err := h.admin(c).EditRosterEntry(c.Param("studentId"), req.StudyHours, req.IsPresent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type attendanceDateRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
}

func (h *Handler) SetAttendanceDate(c *gin.Context) {
	var req attendanceDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.admin(c).SetAttendanceDate(req.Date); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendanceDate": req.Date})
}

func (h *Handler) SubmitAttendance(c *gin.Context) {
	a := h.admin(c)
	n, err := a.SubmitAttendance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submitted": n, "roster": a.State().Roster})
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req model.NewStudent
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a := h.admin(c)
	if err := a.CreateStudent(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roster": a.State().Roster})
}

// ---------- Fee form ----------

func (h *Handler) OpenFeeForm(c *gin.Context) {
	st := h.admin(c).OpenFeeForm(c.Request.Context(), c.Param("studentId"))
	c.JSON(http.StatusOK, st)
}

type feeMonthRequest struct {
	BillingMonth string `json:"billingMonth" binding:"required,yearmonth"`
}

func (h *Handler) ChangeFeeMonth(c *gin.Context) {
	var req feeMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	month, err := model.ParseMonth(req.BillingMonth)
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.admin(c).ChangeFeeMonth(c.Request.Context(), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) FeeForm(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin(c).FeeForm())
}

type feeSubmitRequest struct {
	IsSettled     bool                `json:"isSettled"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" binding:"omitempty,oneof=cash UPI"`
}

func (h *Handler) SubmitFee(c *gin.Context) {
	var req feeSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a := h.admin(c)
	if err := a.SubmitFee(c.Request.Context(), req.IsSettled, req.PaymentMethod); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feeForm": a.FeeForm(), "roster": a.State().Roster})
}

func (h *Handler) CloseFeeForm(c *gin.Context) {
	h.admin(c).CloseFeeForm()
	c.Status(http.StatusNoContent)
}

// ---------- Detail view ----------

func (h *Handler) OpenDetail(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin(c).OpenDetail(c.Request.Context(), c.Param("studentId")))
}

type monthRequest struct {
	Month string `json:"month" binding:"required,yearmonth"`
}

func (h *Handler) ChangeDetailMonth(c *gin.Context) {
	var req monthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	month, err := model.ParseMonth(req.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.admin(c).ChangeDetailMonth(c.Request.Context(), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Detail(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin(c).Detail())
}

func (h *Handler) CloseDetail(c *gin.Context) {
	h.admin(c).CloseDetail()
	c.Status(http.StatusNoContent)
}

// ---------- Students index and per-student panels ----------

func (h *Handler) SearchStudents(c *gin.Context) {
	students, err := h.admin(c).Students(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) ReloadStudents(c *gin.Context) {
	a := h.admin(c)
	if _, err := a.ReloadStudents(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	students, _ := a.Students(c.Request.Context(), c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	recs, err := h.admin(c).StudentAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

type addAttendanceRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime" binding:"omitempty,hhmm"`
	EndTime   string `json:"endTime" binding:"omitempty,hhmm"`
	IsPresent *bool  `json:"isPresent"`
}

func (h *Handler) AddStudentAttendance(c *gin.Context) {
	var req addAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	present := true
	if req.IsPresent != nil {
		present = *req.IsPresent
	}
	recs, err := h.admin(c).AddStudentAttendance(c.Request.Context(), model.TimedAttendance{
		StudentID: c.Param("id"),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Date:      req.Date,
		IsPresent: present,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attendance": recs})
}

func (h *Handler) StudentFees(c *gin.Context) {
	fees, err := h.admin(c).StudentFees(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

type markPaidRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod" binding:"omitempty,oneof=cash UPI"`
	PaidOn        *time.Time          `json:"paidOn"`
}

func (h *Handler) MarkFeePaid(c *gin.Context) {
	month, err := model.ParseMonth(c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req markPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	var paidOn time.Time
	if req.PaidOn != nil {
		paidOn = *req.PaidOn
	}
	fees, err := h.admin(c).MarkFeePaid(c.Request.Context(), c.Param("id"), month, req.PaymentMethod, paidOn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

func (h *Handler) AdminInvoice(c *gin.Context) {
	month, err := model.ParseMonth(c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.admin(c).Invoice(c.Request.Context(), c.Param("id"), month)
	if err != nil {
		respondError(c, err)
		return
	}
	sendInvoice(c, inv)
}

func (h *Handler) StudentProfile(c *gin.Context) {
	st, err := h.admin(c).StudentProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------- Sheet import ----------

type importFetchRequest struct {
	RowNumber int `json:"rowNumber" binding:"required,gt=0"`
}

func (h *Handler) ImportFetch(c *gin.Context) {
	var req importFetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := h.admin(c).FetchFromSheet(c.Request.Context(), req.RowNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type importFeeRequest struct {
	FeesPerHour float64 `json:"feesPerHour" binding:"gte=0"`
}

func (h *Handler) ImportFee(c *gin.Context) {
	var req importFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.admin(c).SetImportFee(req.FeesPerHour))
}

type importSlotRequest struct {
	From string `json:"from" binding:"omitempty,hhmm"`
	To   string `json:"to" binding:"omitempty,hhmm"`
}

func (h *Handler) ImportSlot(c *gin.Context) {
	day := c.Param("day")
	if !model.IsWeekday(day) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown weekday %q", day)})
		return
	}
	var req importSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := h.admin(c).SetImportSlot(day, req.From, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Import(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin(c).Import())
}

func (h *Handler) ImportSubmit(c *gin.Context) {
	a := h.admin(c)
	if err := a.SubmitImport(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.Import())
}

func (h *Handler) ImportCancel(c *gin.Context) {
	h.admin(c).CancelImport()
	c.Status(http.StatusNoContent)
}

func sendInvoice(c *gin.Context, inv dashboard.Invoice) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": inv.Filename}))
	c.Header("Content-Length", strconv.Itoa(len(inv.Data)))
	c.Data(http.StatusOK, "application/pdf", inv.Data)
}
