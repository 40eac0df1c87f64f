package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
)

type mockMarkRepo struct {
	marks   map[string]*models.Mark
	records []models.MarkRecord
	deleted int64
}

func markKey(m *models.Mark) string {
	return fmt.Sprintf("%s|%s|%s|%s", m.StudentID, m.SubjectID, m.ExamType, m.Term)
}

func (m *mockMarkRepo) Upsert(ctx context.Context, mark *models.Mark) (*models.Mark, error) {
	if m.marks == nil {
		m.marks = make(map[string]*models.Mark)
	}
	key := markKey(mark)
	if existing, ok := m.marks[key]; ok {
		existing.MarksObtained = mark.MarksObtained
		return existing, nil
	}
	mark.ID = key
	m.marks[key] = mark
	return mark, nil
}

func (m *mockMarkRepo) FindByID(ctx context.Context, id string) (*models.MarkRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockMarkRepo) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error) {
	return m.records, nil
}

func (m *mockMarkRepo) Delete(ctx context.Context, id string) (int64, error) {
	return m.deleted, nil
}

type mockSubjectFinder struct {
	subject *models.Subject
	err     error
}

func (m *mockSubjectFinder) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.subject, nil
}

func newMarkService(repo *mockMarkRepo, subjects *mockSubjectFinder, students *mockStudentFinder) *MarkService {
	return NewMarkService(repo, subjects, students, validator.New(), zap.NewNop())
}

func TestMarkServiceEnter(t *testing.T) {
	repo := &mockMarkRepo{}
	subjects := &mockSubjectFinder{subject: &models.Subject{ID: "sub-1", Code: "MATH", MaxMarks: 100}}
	students := &mockStudentFinder{student: &models.Student{ID: "s-1"}}
	svc := newMarkService(repo, subjects, students)

	stored, err := svc.Enter(context.Background(), EnterMarkRequest{
		StudentID:     "s-1",
		SubjectID:     "sub-1",
		ExamType:      "SEMESTER",
		MarksObtained: 82,
		Term:          "2026-T1",
	})
	require.NoError(t, err)
	assert.Equal(t, 82, stored.MarksObtained)
	assert.Equal(t, models.ExamSemester, stored.ExamType)
}

func TestMarkServiceEnterOverwrites(t *testing.T) {
	repo := &mockMarkRepo{}
	subjects := &mockSubjectFinder{subject: &models.Subject{ID: "sub-1", Code: "MATH", MaxMarks: 100}}
	students := &mockStudentFinder{student: &models.Student{ID: "s-1"}}
	svc := newMarkService(repo, subjects, students)

	req := EnterMarkRequest{StudentID: "s-1", SubjectID: "sub-1", ExamType: "INTERNAL1", MarksObtained: 30, Term: "2026-T1"}
	_, err := svc.Enter(context.Background(), req)
	require.NoError(t, err)

	req.MarksObtained = 45
	stored, err := svc.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 45, stored.MarksObtained)
	assert.Len(t, repo.marks, 1, "same key overwrites instead of duplicating")
}

func TestMarkServiceEnterBounds(t *testing.T) {
	repo := &mockMarkRepo{}
	subjects := &mockSubjectFinder{subject: &models.Subject{ID: "sub-1", Code: "PHY", MaxMarks: 50}}
	students := &mockStudentFinder{student: &models.Student{ID: "s-1"}}
	svc := newMarkService(repo, subjects, students)

	// The cap itself is allowed.
	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "s-1", SubjectID: "sub-1", ExamType: "SEMESTER", MarksObtained: 50, Term: "2026-T1"})
	require.NoError(t, err)

	_, err = svc.Enter(context.Background(), EnterMarkRequest{StudentID: "s-1", SubjectID: "sub-1", ExamType: "SEMESTER", MarksObtained: 51, Term: "2026-T1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Enter(context.Background(), EnterMarkRequest{StudentID: "s-1", SubjectID: "sub-1", ExamType: "SEMESTER", MarksObtained: -1, Term: "2026-T1"})
	require.Error(t, err)
}

func TestMarkServiceEnterUnknownExamType(t *testing.T) {
	svc := newMarkService(&mockMarkRepo{}, &mockSubjectFinder{subject: &models.Subject{ID: "sub-1", MaxMarks: 100}}, &mockStudentFinder{student: &models.Student{ID: "s-1"}})

	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "s-1", SubjectID: "sub-1", ExamType: "FINALS", MarksObtained: 10, Term: "2026-T1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMarkServiceEnterUnknownSubject(t *testing.T) {
	svc := newMarkService(&mockMarkRepo{}, &mockSubjectFinder{err: sql.ErrNoRows}, &mockStudentFinder{student: &models.Student{ID: "s-1"}})

	_, err := svc.Enter(context.Background(), EnterMarkRequest{StudentID: "s-1", SubjectID: "ghost", ExamType: "SEMESTER", MarksObtained: 10, Term: "2026-T1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkServiceDeleteMissing(t *testing.T) {
	svc := newMarkService(&mockMarkRepo{deleted: 0}, &mockSubjectFinder{}, &mockStudentFinder{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
