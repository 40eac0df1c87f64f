package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/service"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
	"github.com/edutrack/edutrack-api/pkg/response"
)

// MeHandler serves the student self-service surface. Every endpoint
// resolves the caller's own profile from the token, so a student can
// never read another student's data through these routes.
type MeHandler struct {
	students   *service.StudentService
	attendance *service.AttendanceService
	marks      *service.MarkService
	reports    *service.ReportService
}

// NewMeHandler constructs MeHandler.
func NewMeHandler(students *service.StudentService, attendance *service.AttendanceService, marks *service.MarkService, reports *service.ReportService) *MeHandler {
	return &MeHandler{students: students, attendance: attendance, marks: marks, reports: reports}
}

func (h *MeHandler) ownProfile(c *gin.Context) (*models.Student, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return student, true
}

// Profile godoc
// @Summary Own student profile
// @Tags Me
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/profile [get]
func (h *MeHandler) Profile(c *gin.Context) {
	student, ok := h.ownProfile(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Attendance godoc
// @Summary Own attendance for one day
// @Tags Me
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /me/attendance [get]
func (h *MeHandler) Attendance(c *gin.Context) {
	student, ok := h.ownProfile(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	day, err := h.attendance.StudentDay(c.Request.Context(), student.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// AttendanceReport godoc
// @Summary Own per-period attendance report
// @Tags Me
// @Produce json
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param include_unmarked query bool false "Synthesize rows for unrecorded periods"
// @Success 200 {object} response.Envelope
// @Router /me/attendance/report [get]
func (h *MeHandler) AttendanceReport(c *gin.Context) {
	student, ok := h.ownProfile(c)
	if !ok {
		return
	}
	includeUnmarked := c.Query("include_unmarked") == "true"
	report, err := h.reports.StudentDetail(c.Request.Context(), student.ID,
		c.Query("start_date"), c.Query("end_date"), includeUnmarked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Marks godoc
// @Summary Own marks
// @Tags Me
// @Produce json
// @Param subject_id query string false "Filter by subject"
// @Param exam_type query string false "Filter by exam type"
// @Param term query string false "Filter by term"
// @Success 200 {object} response.Envelope
// @Router /me/marks [get]
func (h *MeHandler) Marks(c *gin.Context) {
	student, ok := h.ownProfile(c)
	if !ok {
		return
	}
	filter, err := markFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.StudentID = student.ID

	marks, err := h.marks.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}
