package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/service"
	"github.com/edutrack/edutrack-api/pkg/jobs"
)

type reportStudentsMock struct {
	roster  []models.RosterEntry
	student *models.Student
}

func (m *reportStudentsMock) Roster(ctx context.Context, className, section string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

func (m *reportStudentsMock) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return m.student, nil
}

type reportAttendanceMock struct {
	rows []models.AttendancePeriod
}

func (m *reportAttendanceMock) FetchClassRange(ctx context.Context, className, section string, from, to time.Time) ([]models.AttendancePeriod, error) {
	return m.rows, nil
}

func (m *reportAttendanceMock) FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error) {
	return m.rows, nil
}

type queueMock struct {
	enqueued []jobs.Job
}

func (m *queueMock) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

type reportMarksMock struct {
	rows []models.MarkRecord
}

func (m *reportMarksMock) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error) {
	return m.rows, nil
}

func newReportHandlerUnderTest(students *reportStudentsMock, attendance *reportAttendanceMock, queue *queueMock) *ReportHandler {
	svc := service.NewReportService(students, attendance, &reportMarksMock{}, nil, nil, nil, nil, queue, service.ReportConfig{}, zap.NewNop())
	return NewReportHandler(svc)
}

func newMarksReportHandlerUnderTest(students *reportStudentsMock, marks *reportMarksMock) *ReportHandler {
	svc := service.NewReportService(students, &reportAttendanceMock{}, marks, nil, nil, nil, nil, &queueMock{}, service.ReportConfig{}, zap.NewNop())
	return NewReportHandler(svc)
}

func TestReportHandlerDaily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandlerUnderTest(
		&reportStudentsMock{roster: []models.RosterEntry{{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"}}},
		&reportAttendanceMock{},
		&queueMock{},
	)

	c, w := newGinContext(http.MethodGet, "/reports/attendance/daily?class=10&section=A&date=2026-08-03", nil)
	handler.Daily(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alpha")
}

func TestReportHandlerDailyMissingClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandlerUnderTest(&reportStudentsMock{}, &reportAttendanceMock{}, &queueMock{})

	c, w := newGinContext(http.MethodGet, "/reports/attendance/daily?date=2026-08-03", nil)
	handler.Daily(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerRangeInvertedDates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandlerUnderTest(&reportStudentsMock{}, &reportAttendanceMock{}, &queueMock{})

	c, w := newGinContext(http.MethodGet, "/reports/attendance/range?class=10&section=A&start_date=2026-08-07&end_date=2026-08-03", nil)
	handler.Range(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandlerUnderTest(
		&reportStudentsMock{roster: []models.RosterEntry{{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"}}},
		&reportAttendanceMock{},
		&queueMock{},
	)

	c, w := newGinContext(http.MethodGet, "/reports/attendance/export?class=10&section=A&start_date=2026-08-03&end_date=2026-08-04&format=csv", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment"))
	assert.Contains(t, w.Body.String(), "Roll Number")
}

func TestReportHandlerEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	queue := &queueMock{}
	handler := newReportHandlerUnderTest(
		&reportStudentsMock{roster: []models.RosterEntry{{StudentID: "s-1", FullName: "Alpha", RollNumber: "01"}}},
		&reportAttendanceMock{},
		queue,
	)

	payload, _ := json.Marshal(EmailReportRequest{
		ClassName: "10",
		Section:   "A",
		StartDate: "2026-08-03",
		EndDate:   "2026-08-04",
		Recipient: "head@school.test",
	})
	c, w := newGinContext(http.MethodPost, "/reports/attendance/email", payload)
	handler.Email(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.enqueued, 1)
}

func TestReportHandlerStudentMarks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newMarksReportHandlerUnderTest(
		&reportStudentsMock{student: &models.Student{ID: "s-1", RollNumber: "01", FullName: "Alpha", ClassName: "10", Section: "A"}},
		&reportMarksMock{rows: []models.MarkRecord{
			{Mark: models.Mark{StudentID: "s-1", ExamType: models.ExamSemester, MarksObtained: 45, Term: "T1"},
				SubjectName: "Science", SubjectCode: "SCI", MaxMarks: 50},
		}},
	)

	c, w := newGinContext(http.MethodGet, "/reports/marks/students/s-1?term=T1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	handler.StudentMarks(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Science")
}

func TestReportHandlerStudentReportCard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newMarksReportHandlerUnderTest(
		&reportStudentsMock{student: &models.Student{ID: "s-1", RollNumber: "01", FullName: "Alpha", ClassName: "10", Section: "A"}},
		&reportMarksMock{rows: []models.MarkRecord{
			{Mark: models.Mark{StudentID: "s-1", ExamType: models.ExamSemester, MarksObtained: 45, Term: "T1"},
				SubjectName: "Science", SubjectCode: "SCI", MaxMarks: 50},
		}},
	)

	c, w := newGinContext(http.MethodGet, "/reports/marks/students/s-1/card?term=T1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	handler.StudentReportCard(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment"))
}

func TestReportHandlerEmailMissingRecipient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newReportHandlerUnderTest(&reportStudentsMock{}, &reportAttendanceMock{}, &queueMock{})

	payload, _ := json.Marshal(map[string]string{
		"class_name": "10",
		"section":    "A",
		"start_date": "2026-08-03",
		"end_date":   "2026-08-04",
	})
	c, w := newGinContext(http.MethodPost, "/reports/attendance/email", payload)
	handler.Email(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
