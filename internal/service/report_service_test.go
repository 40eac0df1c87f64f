package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/report"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
	"github.com/edutrack/edutrack-api/pkg/jobs"
	"github.com/edutrack/edutrack-api/pkg/mailer"
)

type mockReportStudents struct {
	roster  []models.RosterEntry
	student *models.Student
	findErr error
}

func (m *mockReportStudents) Roster(ctx context.Context, className, section string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

func (m *mockReportStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.student, nil
}

type mockReportAttendance struct {
	classRows   []models.AttendancePeriod
	studentRows []models.AttendancePeriod
}

func (m *mockReportAttendance) FetchClassRange(ctx context.Context, className, section string, from, to time.Time) ([]models.AttendancePeriod, error) {
	return m.classRows, nil
}

func (m *mockReportAttendance) FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error) {
	return m.studentRows, nil
}

type mockQueue struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func reportRecord(studentID, date string, period int, status models.PeriodStatus) models.AttendancePeriod {
	parsed, _ := time.Parse(report.DateLayout, date)
	return models.AttendancePeriod{StudentID: studentID, Date: parsed, Period: period, Status: status}
}

type mockReportMarks struct {
	rows    []models.MarkRecord
	filters []models.MarkFilter
}

func (m *mockReportMarks) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error) {
	m.filters = append(m.filters, filter)
	return m.rows, nil
}

func newTestReportService(students *mockReportStudents, attendance *mockReportAttendance, queue emailEnqueuer) *ReportService {
	return NewReportService(students, attendance, nil, nil, nil, nil, nil, queue, ReportConfig{}, zap.NewNop())
}

func newTestMarksReportService(students *mockReportStudents, marks *mockReportMarks) *ReportService {
	return NewReportService(students, &mockReportAttendance{}, marks, nil, nil, nil, nil, &mockQueue{}, ReportConfig{}, zap.NewNop())
}

func TestReportServiceDaily(t *testing.T) {
	students := &mockReportStudents{roster: []models.RosterEntry{
		{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"},
		{StudentID: "s-2", FullName: "Beta", RollNumber: "02"},
	}}
	attendance := &mockReportAttendance{classRows: []models.AttendancePeriod{
		reportRecord("s-1", "2026-08-03", 1, models.StatusPresent),
	}}
	svc := newTestReportService(students, attendance, &mockQueue{})

	got, err := svc.Daily(context.Background(), "10", "A", "2026-08-03")
	require.NoError(t, err)
	require.Len(t, got.Rows, 2, "every roster student appears")
	assert.Equal(t, models.StatusPresent, got.Rows[0].Periods[0])
	assert.Equal(t, models.StatusNotMarked, got.Rows[1].Periods[0])
}

func TestReportServiceDailyEmptyRoster(t *testing.T) {
	svc := newTestReportService(&mockReportStudents{}, &mockReportAttendance{}, &mockQueue{})

	got, err := svc.Daily(context.Background(), "10", "Z", "2026-08-03")
	require.NoError(t, err)
	assert.Empty(t, got.Rows)
}

func TestReportServiceRangeRejectsInvertedDates(t *testing.T) {
	svc := newTestReportService(&mockReportStudents{}, &mockReportAttendance{}, &mockQueue{})

	_, err := svc.Range(context.Background(), "10", "A", "2026-08-07", "2026-08-03")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceStudentDetailIncludeUnmarked(t *testing.T) {
	students := &mockReportStudents{student: &models.Student{ID: "s-1"}}
	attendance := &mockReportAttendance{studentRows: []models.AttendancePeriod{
		reportRecord("s-1", "2026-08-03", 1, models.StatusLate),
	}}
	svc := newTestReportService(students, attendance, &mockQueue{})

	sparse, err := svc.StudentDetail(context.Background(), "s-1", "2026-08-03", "2026-08-03", false)
	require.NoError(t, err)
	assert.Len(t, sparse.Rows, 1)

	dense, err := svc.StudentDetail(context.Background(), "s-1", "2026-08-03", "2026-08-03", true)
	require.NoError(t, err)
	assert.Len(t, dense.Rows, models.PeriodsPerDay)
}

func TestReportServiceExportRangeCSV(t *testing.T) {
	students := &mockReportStudents{roster: []models.RosterEntry{
		{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"},
	}}
	// 2 present, 1 late, 1 absent: presence 50%, credit 75%.
	attendance := &mockReportAttendance{classRows: []models.AttendancePeriod{
		reportRecord("s-1", "2026-08-03", 1, models.StatusPresent),
		reportRecord("s-1", "2026-08-03", 2, models.StatusPresent),
		reportRecord("s-1", "2026-08-03", 3, models.StatusLate),
		reportRecord("s-1", "2026-08-03", 4, models.StatusAbsent),
	}}
	svc := newTestReportService(students, attendance, &mockQueue{})

	exported, err := svc.ExportRange(context.Background(), "10", "A", "2026-08-03", "2026-08-03", ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", exported.ContentType)
	assert.Contains(t, exported.Filename, ".csv")

	content := string(exported.Payload)
	assert.Contains(t, content, "Roll Number")
	assert.Contains(t, content, "Attendance Credit (%)")

	header := findCSVLine(content, "Roll Number")
	for p := 1; p <= models.PeriodsPerDay; p++ {
		assert.Contains(t, header, fmt.Sprintf("2026-08-03 P%d", p), "one status column per date and period")
	}

	line := findCSVLine(content, "Alpha")
	require.NotEmpty(t, line)
	assert.Contains(t, line, "late", "period statuses are spelled out per column")
	assert.Contains(t, line, "not-marked")
	assert.Contains(t, line, "50", "strict presence rate")
	assert.Contains(t, line, "75", "credit rate counts late and half-day")
}

func TestReportServiceRangeRejectsExcessiveSpan(t *testing.T) {
	svc := newTestReportService(&mockReportStudents{}, &mockReportAttendance{}, &mockQueue{})

	_, err := svc.Range(context.Background(), "10", "A", "2020-01-01", "2026-01-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportRangeUnknownFormat(t *testing.T) {
	svc := newTestReportService(&mockReportStudents{}, &mockReportAttendance{}, &mockQueue{})

	_, err := svc.ExportRange(context.Background(), "10", "A", "2026-08-03", "2026-08-03", ReportFormat("pdf"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceEmailRange(t *testing.T) {
	students := &mockReportStudents{roster: []models.RosterEntry{
		{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"},
	}}
	attendance := &mockReportAttendance{}
	queue := &mockQueue{}
	svc := newTestReportService(students, attendance, queue)

	err := svc.EmailRange(context.Background(), "10", "A", "2026-08-03", "2026-08-04", ReportFormatCSV, "head@school.test")
	require.NoError(t, err)

	require.Len(t, queue.enqueued, 1)
	job := queue.enqueued[0]
	assert.Equal(t, JobTypeReportEmail, job.Type)
	msg, ok := job.Payload.(mailer.Message)
	require.True(t, ok)
	assert.Equal(t, "head@school.test", msg.To)
	require.Len(t, msg.Attachments, 1)
	assert.Contains(t, msg.Attachments[0].Filename, ".csv")
	assert.NotEmpty(t, msg.Attachments[0].Data)
}

func TestReportServiceEmailRangeMissingRecipient(t *testing.T) {
	svc := newTestReportService(&mockReportStudents{}, &mockReportAttendance{}, &mockQueue{})

	err := svc.EmailRange(context.Background(), "10", "A", "2026-08-03", "2026-08-04", ReportFormatCSV, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func findCSVLine(content, needle string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	return ""
}

func TestReportServiceStudentMarks(t *testing.T) {
	students := &mockReportStudents{student: &models.Student{
		ID: "s-1", RollNumber: "01", FullName: "Alpha", ClassName: "10", Section: "A",
	}}
	marks := &mockReportMarks{rows: []models.MarkRecord{
		{Mark: models.Mark{StudentID: "s-1", ExamType: models.ExamSemester, MarksObtained: 45, Term: "T1"},
			SubjectName: "Science", SubjectCode: "SCI", MaxMarks: 50},
		{Mark: models.Mark{StudentID: "s-1", ExamType: models.ExamSemester, MarksObtained: 80, Term: "T1"},
			SubjectName: "Maths", SubjectCode: "MAT", MaxMarks: 100},
	}}
	svc := newTestMarksReportService(students, marks)

	sheet, err := svc.StudentMarks(context.Background(), "s-1", "T1")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	require.Len(t, marks.filters, 1)

	assert.Equal(t, "T1", marks.filters[0].Term)
	assert.Equal(t, "Maths", sheet.Rows[0].SubjectName)
	assert.Equal(t, 80, sheet.Rows[0].Percentage)
	assert.Equal(t, "Science", sheet.Rows[1].SubjectName)
	assert.Equal(t, 90, sheet.Rows[1].Percentage)
	assert.Equal(t, 125, sheet.TotalObtained)
	assert.Equal(t, 150, sheet.TotalMax)
	assert.Equal(t, 83, sheet.OverallPercentage)
}

func TestReportServiceStudentMarksUnknownStudent(t *testing.T) {
	students := &mockReportStudents{findErr: sql.ErrNoRows}
	svc := newTestMarksReportService(students, &mockReportMarks{})

	_, err := svc.StudentMarks(context.Background(), "ghost", "")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReportServiceStudentReportCard(t *testing.T) {
	students := &mockReportStudents{student: &models.Student{
		ID: "s-1", RollNumber: "01", FullName: "Alpha", ClassName: "10", Section: "A",
	}}
	marks := &mockReportMarks{rows: []models.MarkRecord{
		{Mark: models.Mark{StudentID: "s-1", ExamType: models.ExamSemester, MarksObtained: 45, Term: "T1"},
			SubjectName: "Science", SubjectCode: "SCI", MaxMarks: 50},
	}}
	svc := newTestMarksReportService(students, marks)

	exported, err := svc.StudentReportCard(context.Background(), "s-1", "T1")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", exported.ContentType)
	assert.Equal(t, "report_card_01_T1.pdf", exported.Filename)
	assert.True(t, strings.HasPrefix(string(exported.Payload), "%PDF"))
}
