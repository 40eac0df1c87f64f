package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/report"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
	"github.com/edutrack/edutrack-api/pkg/export"
	"github.com/edutrack/edutrack-api/pkg/jobs"
	"github.com/edutrack/edutrack-api/pkg/mailer"
)

// ReportFormat identifies an export rendering.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// JobTypeReportEmail labels queued report email deliveries.
const JobTypeReportEmail = "report_email"

// maxReportSpan bounds report date ranges so a mistyped year cannot
// allocate day rows without limit.
const maxReportSpan = 366 * 24 * time.Hour

type reportStudentRepository interface {
	Roster(ctx context.Context, className, section string) ([]models.RosterEntry, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type reportAttendanceRepository interface {
	FetchClassRange(ctx context.Context, className, section string, from, to time.Time) ([]models.AttendancePeriod, error)
	FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error)
}

type reportMarkRepository interface {
	List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type excelRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type emailEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ReportConfig tunes report caching.
type ReportConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportedReport is a rendered report ready for download or attachment.
type ExportedReport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService assembles attendance reports. Persistence hands it raw
// rosters and period records; the pure builders in the report package do
// the aggregation.
type ReportService struct {
	students   reportStudentRepository
	attendance reportAttendanceRepository
	marks      reportMarkRepository
	cache      reportCache
	csv        csvRenderer
	excel      excelRenderer
	pdf        pdfRenderer
	queue      emailEnqueuer
	logger     *zap.Logger
	cfg        ReportConfig
}

// NewReportService constructs a ReportService.
func NewReportService(students reportStudentRepository, attendance reportAttendanceRepository, marks reportMarkRepository, cache reportCache, csv csvRenderer, excel excelRenderer, pdf pdfRenderer, queue emailEnqueuer, cfg ReportConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if excel == nil {
		excel = export.NewExcelExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{
		students:   students,
		attendance: attendance,
		marks:      marks,
		cache:      cache,
		csv:        csv,
		excel:      excel,
		pdf:        pdf,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
	}
}

// Daily builds the single-day class report. An empty roster yields an
// empty report, not an error.
func (s *ReportService) Daily(ctx context.Context, className, section, dateRaw string) (*report.DailyClassReport, error) {
	date, err := time.Parse(report.DateLayout, dateRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	cacheKey := fmt.Sprintf("report:class:%s:%s:daily:%s", className, section, dateRaw)
	if s.cacheEnabled() {
		var cached report.DailyClassReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	roster, err := s.students.Roster(ctx, className, section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.attendance.FetchClassRange(ctx, className, section, date, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	built := report.BuildDailyClassReport(date, className, section, roster, records)
	s.cachePut(ctx, cacheKey, built)
	return &built, nil
}

// Range builds the date-range class report with per-student totals and
// the cohort summary.
func (s *ReportService) Range(ctx context.Context, className, section, startRaw, endRaw string) (*report.RangeClassReport, error) {
	start, end, err := parseRange(startRaw, endRaw)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("report:class:%s:%s:range:%s:%s", className, section, startRaw, endRaw)
	if s.cacheEnabled() {
		var cached report.RangeClassReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	roster, err := s.students.Roster(ctx, className, section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.attendance.FetchClassRange(ctx, className, section, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	built, err := report.BuildRangeClassReport(start, end, className, section, roster, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report range")
	}
	s.cachePut(ctx, cacheKey, built)
	return &built, nil
}

// StudentDetail builds the per-period detail report for one student.
// includeUnmarked synthesizes placeholder rows for unrecorded periods.
func (s *ReportService) StudentDetail(ctx context.Context, studentID, startRaw, endRaw string, includeUnmarked bool) (*report.StudentDetailReport, error) {
	start, end, err := parseRange(startRaw, endRaw)
	if err != nil {
		return nil, err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	scope := "marked"
	if includeUnmarked {
		scope = "all"
	}
	cacheKey := fmt.Sprintf("report:student:%s:%s:%s:%s", studentID, startRaw, endRaw, scope)
	if s.cacheEnabled() {
		var cached report.StudentDetailReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	records, err := s.attendance.FetchStudentRange(ctx, studentID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	built, err := report.BuildStudentDetailReport(studentID, start, end, records, includeUnmarked)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report range")
	}
	s.cachePut(ctx, cacheKey, built)
	return &built, nil
}

// ExportRange renders the date-range class report as a CSV or XLSX file.
// The exported percentage column uses the attendance credit rate, with
// the strict presence rate alongside it.
func (s *ReportService) ExportRange(ctx context.Context, className, section, startRaw, endRaw string, format ReportFormat) (*ExportedReport, error) {
	rangeReport, err := s.Range(ctx, className, section, startRaw, endRaw)
	if err != nil {
		return nil, err
	}

	dataset := buildRangeDataset(rangeReport)
	title := fmt.Sprintf("Attendance %s-%s %s to %s", className, section, startRaw, endRaw)

	var payload []byte
	var contentType string
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ReportFormatXLSX:
		payload, err = s.excel.Render(dataset, "Attendance")
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("attendance_%s_%s_%s_%s.%s",
		sanitizeFilename(className), sanitizeFilename(section), startRaw, endRaw, format)

	s.logger.Info("report exported",
		zap.String("title", title),
		zap.String("format", string(format)),
		zap.Int("bytes", len(payload)))

	return &ExportedReport{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

// EmailRange renders the range export and queues it for delivery. The
// send happens on the background mail queue; a saturated queue surfaces
// as an error rather than blocking the request.
func (s *ReportService) EmailRange(ctx context.Context, className, section, startRaw, endRaw string, format ReportFormat, recipient string) error {
	if recipient == "" {
		return appErrors.Clone(appErrors.ErrValidation, "recipient email is required")
	}
	exported, err := s.ExportRange(ctx, className, section, startRaw, endRaw, format)
	if err != nil {
		return err
	}

	msg := mailer.Message{
		To:      recipient,
		Subject: fmt.Sprintf("Attendance report %s-%s (%s to %s)", className, section, startRaw, endRaw),
		Body: fmt.Sprintf("Attached is the attendance report for class %s section %s covering %s to %s.",
			className, section, startRaw, endRaw),
		Attachments: []mailer.Attachment{{
			Filename:    exported.Filename,
			ContentType: exported.ContentType,
			Data:        exported.Payload,
		}},
	}

	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeReportEmail, Payload: msg}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report email")
	}

	s.logger.Info("report email queued",
		zap.String("recipient", recipient),
		zap.String("filename", exported.Filename))
	return nil
}

// StudentMarks assembles the mark sheet for a student, optionally
// scoped to one term. Marks change rarely and have no cache
// invalidation hook, so the sheet is always built fresh.
func (s *ReportService) StudentMarks(ctx context.Context, studentID, term string) (*report.StudentMarksReport, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	marks, err := s.marks.List(ctx, models.MarkFilter{StudentID: studentID, Term: term})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}

	built := report.BuildStudentMarksReport(*student, term, marks)
	return &built, nil
}

// StudentReportCard renders the mark sheet as a printable PDF.
func (s *ReportService) StudentReportCard(ctx context.Context, studentID, term string) (*ExportedReport, error) {
	sheet, err := s.StudentMarks(ctx, studentID, term)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Report Card - %s (%s-%s)", sheet.FullName, sheet.ClassName, sheet.Section)
	if term != "" {
		title += " " + term
	}

	payload, err := s.pdf.Render(buildMarksDataset(sheet), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report card")
	}

	filename := fmt.Sprintf("report_card_%s", sanitizeFilename(sheet.RollNumber))
	if term != "" {
		filename += "_" + sanitizeFilename(term)
	}
	filename += ".pdf"

	s.logger.Info("report card rendered",
		zap.String("student_id", studentID),
		zap.Int("bytes", len(payload)))

	return &ExportedReport{Filename: filename, ContentType: "application/pdf", Payload: payload}, nil
}

func (s *ReportService) cacheEnabled() bool {
	return s.cfg.CacheEnabled && s.cache != nil
}

func (s *ReportService) cachePut(ctx context.Context, key string, value interface{}) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache report", zap.String("key", key), zap.Error(err))
	}
}

func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(report.DateLayout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD")
	}
	end, err := time.Parse(report.DateLayout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD")
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}
	if end.Sub(start) >= maxReportSpan {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date range must not exceed 366 days")
	}
	return start, end, nil
}

// buildRangeDataset lays out identity columns, one status column per
// date and period, then the summary columns.
func buildRangeDataset(r *report.RangeClassReport) export.Dataset {
	headers := []string{"Roll Number", "Full Name"}
	if len(r.Students) > 0 {
		for _, day := range r.Students[0].Days {
			for p := 1; p <= len(day.Periods); p++ {
				headers = append(headers, periodColumn(day.Date, p))
			}
		}
	}
	headers = append(headers, "Periods Present", "Periods Attended", "Periods Marked", "Presence (%)", "Attendance Credit (%)")

	rows := make([]map[string]string, 0, len(r.Students))
	for _, student := range r.Students {
		credited := 0
		row := map[string]string{
			"Roll Number": student.RollNumber,
			"Full Name":   student.FullName,
		}
		for _, day := range student.Days {
			credited += report.CountCredited(day.Periods)
			for i, status := range day.Periods {
				row[periodColumn(day.Date, i+1)] = string(status)
			}
		}
		row["Periods Present"] = fmt.Sprintf("%d", student.Total.Present)
		row["Periods Attended"] = fmt.Sprintf("%d", credited)
		row["Periods Marked"] = fmt.Sprintf("%d", student.Total.Marked)
		row["Presence (%)"] = fmt.Sprintf("%d", student.Total.Percentage)
		row["Attendance Credit (%)"] = fmt.Sprintf("%d", report.RoundPercent(credited, student.Total.Marked))
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func periodColumn(date string, period int) string {
	return fmt.Sprintf("%s P%d", date, period)
}

func buildMarksDataset(sheet *report.StudentMarksReport) export.Dataset {
	headers := []string{"Subject", "Code", "Exam", "Marks", "Max", "Percentage"}
	rows := make([]map[string]string, 0, len(sheet.Rows)+1)
	for _, row := range sheet.Rows {
		rows = append(rows, map[string]string{
			"Subject":    row.SubjectName,
			"Code":       row.SubjectCode,
			"Exam":       string(row.ExamType),
			"Marks":      fmt.Sprintf("%d", row.MarksObtained),
			"Max":        fmt.Sprintf("%d", row.MaxMarks),
			"Percentage": fmt.Sprintf("%d", row.Percentage),
		})
	}
	rows = append(rows, map[string]string{
		"Subject":    "Total",
		"Code":       "",
		"Exam":       "",
		"Marks":      fmt.Sprintf("%d", sheet.TotalObtained),
		"Max":        fmt.Sprintf("%d", sheet.TotalMax),
		"Percentage": fmt.Sprintf("%d", sheet.OverallPercentage),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
