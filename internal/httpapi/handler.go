// Package httpapi exposes the session flow and the dashboards as JSON
// routes for the browser shell.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mathify/internal/auth"
	"mathify/internal/dashboard"
	"mathify/internal/notify"
	"mathify/internal/session"
)

// Options are the handler's collaborators.
type Options struct {
	LoginURL   string
	AppBaseURL string
	Store      session.Store
	Cookie     auth.Cookie
	Views      *dashboard.Views
	Feed       notify.Feed
	// Checks are reported by /healthz; any false answer makes it 503.
	Checks map[string]func(ctx context.Context) bool
}

type Handler struct {
	opts Options
}

func New(opts Options) *Handler {
	registerValidators()
	return &Handler{opts: opts}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	r.GET("/", h.Home)
	r.GET("/callback", h.Callback)
	r.GET("/fallback", h.Fallback)
	r.POST("/logout", h.Logout)

	authed := r.Group("", h.opts.Cookie.RequireSession())
	authed.GET("/ui/notifications", h.Notifications)
	authed.GET(session.AdminDashboard, auth.RequireAdmin(), h.AdminHome)
	authed.GET(session.StudentDashboard, h.StudentHome)

	admin := authed.Group("/ui/admin", auth.RequireAdmin())
	admin.GET("/batches", h.ListBatches)
	admin.POST("/batches", h.CreateBatch)
	admin.PUT("/batch", h.SelectBatch)
	admin.GET("/roster", h.Roster)
	admin.PATCH("/roster/:studentId", h.EditRoster)
	admin.PUT("/attendance-date", h.SetAttendanceDate)
	admin.POST("/attendance", h.SubmitAttendance)
	admin.POST("/students", h.CreateStudent)

	admin.POST("/fee-form/:studentId", h.OpenFeeForm)
	admin.PUT("/fee-form/month", h.ChangeFeeMonth)
	admin.GET("/fee-form", h.FeeForm)
	admin.POST("/fee-form/submit", h.SubmitFee)
	admin.DELETE("/fee-form", h.CloseFeeForm)

	admin.POST("/detail/:studentId", h.OpenDetail)
	admin.PUT("/detail/month", h.ChangeDetailMonth)
	admin.GET("/detail", h.Detail)
	admin.DELETE("/detail", h.CloseDetail)

	admin.GET("/students", h.SearchStudents)
	admin.POST("/students/reload", h.ReloadStudents)
	admin.GET("/students/:id/attendance", h.StudentAttendance)
	admin.POST("/students/:id/attendance", h.AddStudentAttendance)
	admin.GET("/students/:id/fees", h.StudentFees)
	admin.POST("/students/:id/fees/:month/paid", h.MarkFeePaid)
	admin.GET("/students/:id/fees/:month/invoice", h.AdminInvoice)
	admin.GET("/students/:id/profile", h.StudentProfile)

	admin.POST("/import/fetch", h.ImportFetch)
	admin.PUT("/import/fee", h.ImportFee)
	admin.PUT("/import/schedule/:day", h.ImportSlot)
	admin.GET("/import", h.Import)
	admin.POST("/import/submit", h.ImportSubmit)
	admin.DELETE("/import", h.ImportCancel)

	student := authed.Group("/ui/student")
	student.GET("", h.StudentHome)
	student.PUT("/month", h.StudentMonth)
	student.GET("/attendance", h.StudentOwnAttendance)
	student.GET("/fees", h.StudentOwnFees)
	student.GET("/fees/:month/invoice", h.StudentInvoice)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.opts.Checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Notifications ----------

func (h *Handler) Notifications(c *gin.Context) {
	sess := auth.Current(c)
	if h.opts.Feed == nil {
		c.JSON(http.StatusOK, gin.H{"notices": []notify.Notice{}})
		return
	}
	notices, err := h.opts.Feed.Drain(c.Request.Context(), sess.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}

func (h *Handler) admin(c *gin.Context) *dashboard.Admin {
	return h.opts.Views.Admin(auth.Current(c))
}

func (h *Handler) student(c *gin.Context) *dashboard.Student {
	return h.opts.Views.Student(auth.Current(c))
}
