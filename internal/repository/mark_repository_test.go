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

func newMarkMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMarkRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "exam_type", "marks_obtained", "term", "created_at", "updated_at"}).
		AddRow("m-1", "s-1", "sub-1", "SEMESTER", 82, "2026-T1", time.Now(), time.Now())
	mock.ExpectQuery("INSERT INTO marks").
		WithArgs(sqlmock.AnyArg(), "s-1", "sub-1", models.ExamSemester, 82, "2026-T1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.Mark{
		StudentID:     "s-1",
		SubjectID:     "sub-1",
		ExamType:      models.ExamSemester,
		MarksObtained: 82,
		Term:          "2026-T1",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", stored.ID)
	assert.Equal(t, 82, stored.MarksObtained)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryList(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "exam_type", "marks_obtained", "term", "created_at", "updated_at", "subject_name", "subject_code", "max_marks"}).
		AddRow("m-1", "s-1", "sub-1", "INTERNAL1", 40, "2026-T1", time.Now(), time.Now(), "Mathematics", "MATH", 50)
	mock.ExpectQuery("SELECT m.id, m.student_id").
		WithArgs("s-1", "2026-T1").
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.MarkFilter{StudentID: "s-1", Term: "2026-T1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Mathematics", records[0].SubjectName)
	assert.Equal(t, 50, records[0].MaxMarks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMarkMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectExec("DELETE FROM marks").
		WithArgs("m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Delete(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
