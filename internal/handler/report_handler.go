package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edutrack/edutrack-api/internal/service"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
	"github.com/edutrack/edutrack-api/pkg/response"
)

// ReportHandler exposes attendance reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Daily godoc
// @Summary Daily class attendance report
// @Description Seven period statuses per student for one class section and date
// @Tags Reports
// @Produce json
// @Param class query string true "Class name"
// @Param section query string true "Section"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/daily [get]
func (h *ReportHandler) Daily(c *gin.Context) {
	class, section := c.Query("class"), c.Query("section")
	if class == "" || section == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class and section are required"))
		return
	}
	report, err := h.reports.Daily(c.Request.Context(), class, section, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Range godoc
// @Summary Date-range class attendance report
// @Description Per-student daily grids, presence totals and the cohort summary
// @Tags Reports
// @Produce json
// @Param class query string true "Class name"
// @Param section query string true "Section"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/range [get]
func (h *ReportHandler) Range(c *gin.Context) {
	class, section := c.Query("class"), c.Query("section")
	if class == "" || section == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class and section are required"))
		return
	}
	report, err := h.reports.Range(c.Request.Context(), class, section, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// StudentDetail godoc
// @Summary Per-period detail report for one student
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param include_unmarked query bool false "Synthesize rows for unrecorded periods"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/students/{id} [get]
func (h *ReportHandler) StudentDetail(c *gin.Context) {
	includeUnmarked := c.Query("include_unmarked") == "true"
	report, err := h.reports.StudentDetail(c.Request.Context(), c.Param("id"),
		c.Query("start_date"), c.Query("end_date"), includeUnmarked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Export godoc
// @Summary Download the range report as CSV or XLSX
// @Tags Reports
// @Produce octet-stream
// @Param class query string true "Class name"
// @Param section query string true "Section"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200 {file} binary
// @Router /reports/attendance/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	class, section := c.Query("class"), c.Query("section")
	if class == "" || section == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class and section are required"))
		return
	}
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))

	exported, err := h.reports.ExportRange(c.Request.Context(), class, section,
		c.Query("start_date"), c.Query("end_date"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exported.Filename))
	c.Data(http.StatusOK, exported.ContentType, exported.Payload)
}

// StudentMarks godoc
// @Summary Mark sheet for one student
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string false "Term filter"
// @Success 200 {object} response.Envelope
// @Router /reports/marks/students/{id} [get]
func (h *ReportHandler) StudentMarks(c *gin.Context) {
	sheet, err := h.reports.StudentMarks(c.Request.Context(), c.Param("id"), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// StudentReportCard godoc
// @Summary Download the mark sheet as a PDF report card
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param term query string false "Term filter"
// @Success 200 {file} binary
// @Router /reports/marks/students/{id}/card [get]
func (h *ReportHandler) StudentReportCard(c *gin.Context) {
	exported, err := h.reports.StudentReportCard(c.Request.Context(), c.Param("id"), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exported.Filename))
	c.Data(http.StatusOK, exported.ContentType, exported.Payload)
}

// Email godoc
// @Summary Email the range report as an attachment
// @Description Rendering happens inline; delivery goes through the background mail queue
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body handler.EmailReportRequest true "Email payload"
// @Success 202 {object} response.Envelope
// @Router /reports/attendance/email [post]
func (h *ReportHandler) Email(c *gin.Context) {
	var req EmailReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	format := service.ReportFormat(req.Format)
	if format == "" {
		format = service.ReportFormatCSV
	}

	if err := h.reports.EmailRange(c.Request.Context(), req.ClassName, req.Section,
		req.StartDate, req.EndDate, format, req.Recipient); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "report queued for delivery"}, nil)
}

// EmailReportRequest is the payload for emailing a range report.
type EmailReportRequest struct {
	ClassName string `json:"class_name" binding:"required"`
	Section   string `json:"section" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Format    string `json:"format"`
	Recipient string `json:"recipient" binding:"required,email"`
}
