package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mathify/internal/model"
)

// The student routes are read-only and always scoped to the signed-in
// user's own id.

func (h *Handler) StudentHome(c *gin.Context) {
	c.JSON(http.StatusOK, h.student(c).Load(c.Request.Context()))
}

func (h *Handler) StudentMonth(c *gin.Context) {
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
	c.JSON(http.StatusOK, h.student(c).SetMonth(c.Request.Context(), month))
}

func (h *Handler) StudentOwnAttendance(c *gin.Context) {
	recs, err := h.student(c).Attendance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

func (h *Handler) StudentOwnFees(c *gin.Context) {
	s := h.student(c)
	fees, err := s.Fees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := s.FeeHistory(c.Request.Context())
	if err != nil {
		history = []model.FeeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"fees": fees, "history": history})
}

func (h *Handler) StudentInvoice(c *gin.Context) {
	month, err := model.ParseMonth(c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.student(c).Invoice(c.Request.Context(), month)
	if err != nil {
		respondError(c, err)
		return
	}
	sendInvoice(c, inv)
}
