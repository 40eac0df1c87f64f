package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/middleware"
	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/service"
)

type attendanceRepoMock struct {
	upserted  []models.AttendancePeriod
	bulked    int
	rangeRows []models.AttendancePeriod
	deleted   int64
}

func (m *attendanceRepoMock) Upsert(ctx context.Context, record *models.AttendancePeriod) (*models.AttendancePeriod, error) {
	m.upserted = append(m.upserted, *record)
	return record, nil
}

func (m *attendanceRepoMock) BulkUpsert(ctx context.Context, records []models.AttendancePeriod) error {
	m.bulked += len(records)
	return nil
}

func (m *attendanceRepoMock) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendancePeriodRecord, int, error) {
	return nil, 0, nil
}

func (m *attendanceRepoMock) FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error) {
	return m.rangeRows, nil
}

func (m *attendanceRepoMock) DeleteDay(ctx context.Context, studentID string, date time.Time) (int64, error) {
	return m.deleted, nil
}

type studentFinderMock struct {
	student *models.Student
}

func (m *studentFinderMock) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return m.student, nil
}

type invalidatorMock struct{}

func (m *invalidatorMock) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

func newAttendanceHandlerUnderTest(repo *attendanceRepoMock) *AttendanceHandler {
	finder := &studentFinderMock{student: &models.Student{ID: "s-1", ClassName: "10", Section: "A"}}
	svc := service.NewAttendanceService(repo, finder, &invalidatorMock{}, nil, zap.NewNop())
	return NewAttendanceHandler(svc)
}

func adminClaims(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
}

func TestAttendanceHandlerMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &attendanceRepoMock{}
	handler := newAttendanceHandlerUnderTest(repo)

	payload, _ := json.Marshal(service.MarkAttendanceRequest{
		StudentID: "s-1",
		Date:      "2026-08-03",
		Period:    2,
		Status:    "present",
	})
	c, w := newGinContext(http.MethodPost, "/attendance", payload)
	adminClaims(c)

	handler.Mark(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "admin-1", repo.upserted[0].RecordedBy)
}

func TestAttendanceHandlerMarkUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAttendanceHandlerUnderTest(&attendanceRepoMock{})

	c, w := newGinContext(http.MethodPost, "/attendance", []byte(`{}`))
	handler.Mark(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttendanceHandlerMarkInvalidPeriod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &attendanceRepoMock{}
	handler := newAttendanceHandlerUnderTest(repo)

	payload, _ := json.Marshal(service.MarkAttendanceRequest{
		StudentID: "s-1",
		Date:      "2026-08-03",
		Period:    9,
		Status:    "present",
	})
	c, w := newGinContext(http.MethodPost, "/attendance", payload)
	adminClaims(c)

	handler.Mark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceHandlerBulkMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &attendanceRepoMock{}
	handler := newAttendanceHandlerUnderTest(repo)

	payload, _ := json.Marshal(service.BulkMarkAttendanceRequest{
		Date: "2026-08-03",
		Entries: []service.BulkAttendanceEntry{
			{StudentID: "s-1", Period: 1, Status: "present"},
			{StudentID: "s-1", Period: 2, Status: "late"},
		},
	})
	c, w := newGinContext(http.MethodPost, "/attendance/bulk", payload)
	adminClaims(c)

	handler.BulkMark(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, repo.bulked)
}

func TestAttendanceHandlerStudentDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	repo := &attendanceRepoMock{rangeRows: []models.AttendancePeriod{
		{StudentID: "s-1", Date: date, Period: 1, Status: models.StatusPresent},
	}}
	handler := newAttendanceHandlerUnderTest(repo)

	c, w := newGinContext(http.MethodGet, "/attendance/students/s-1?date=2026-08-03", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}

	handler.StudentDay(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not-marked")
}

func TestAttendanceHandlerStudentDayMissingDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAttendanceHandlerUnderTest(&attendanceRepoMock{})

	c, w := newGinContext(http.MethodGet, "/attendance/students/s-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}

	handler.StudentDay(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerDeleteDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAttendanceHandlerUnderTest(&attendanceRepoMock{deleted: 3})

	c, w := newGinContext(http.MethodDelete, "/attendance/students/s-1?date=2026-08-03", nil)
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}

	handler.DeleteDay(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "3")
}
