package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/edutrack-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "period", "status", "remarks", "recorded_by", "created_at", "updated_at"}).
		AddRow("ap-1", "s-1", date, 3, "present", nil, "admin-1", time.Now(), time.Now())
	mock.ExpectQuery("INSERT INTO attendance_periods").
		WithArgs(sqlmock.AnyArg(), "s-1", date, 3, models.StatusPresent, nil, "admin-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.AttendancePeriod{
		StudentID:  "s-1",
		Date:       date,
		Period:     3,
		Status:     models.StatusPresent,
		RecordedBy: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ap-1", stored.ID)
	assert.Equal(t, 3, stored.Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_periods").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendance_periods").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []models.AttendancePeriod{
		{StudentID: "s-1", Date: date, Period: 1, Status: models.StatusPresent, RecordedBy: "admin-1"},
		{StudentID: "s-2", Date: date, Period: 1, Status: models.StatusAbsent, RecordedBy: "admin-1"},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ID, "IDs assigned in place")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance_periods").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.BulkUpsert(context.Background(), []models.AttendancePeriod{
		{StudentID: "s-1", Date: time.Now(), Period: 1, Status: models.StatusPresent},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "period", "status", "remarks", "recorded_by", "created_at", "updated_at", "student_name", "roll_number", "class_name", "section"}).
		AddRow("ap-1", "s-1", date, 1, "late", "traffic", "admin-1", time.Now(), time.Now(), "Student", "12", "10", "A")
	mock.ExpectQuery("SELECT ap.id, ap.student_id").
		WithArgs("s-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "s-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Student", records[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFetchStudentRange(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 4)
	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "period", "status", "remarks", "recorded_by", "created_at", "updated_at"}).
		AddRow("ap-1", "s-1", from, 1, "present", nil, "admin-1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, student_id, date, period").
		WithArgs("s-1", from, to).
		WillReturnRows(rows)

	records, err := repo.FetchStudentRange(context.Background(), "s-1", from, to)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteDay(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM attendance_periods").
		WithArgs("s-1", date).
		WillReturnResult(sqlmock.NewResult(0, 5))

	affected, err := repo.DeleteDay(context.Background(), "s-1", date)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
