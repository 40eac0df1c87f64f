package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
)

type markRepository interface {
	Upsert(ctx context.Context, mark *models.Mark) (*models.Mark, error)
	FindByID(ctx context.Context, id string) (*models.MarkRecord, error)
	List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type markSubjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type markStudentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EnterMarkRequest records marks for one student/subject/exam/term.
// Re-entering the same combination overwrites the previous score.
type EnterMarkRequest struct {
	StudentID     string `json:"student_id" validate:"required"`
	SubjectID     string `json:"subject_id" validate:"required"`
	ExamType      string `json:"exam_type" validate:"required"`
	MarksObtained int    `json:"marks_obtained" validate:"min=0"`
	Term          string `json:"term" validate:"required"`
}

// MarkService handles exam mark use-cases.
type MarkService struct {
	repo      markRepository
	subjects  markSubjectFinder
	students  markStudentFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarkService constructs the mark service.
func NewMarkService(repo markRepository, subjects markSubjectFinder, students markStudentFinder, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{repo: repo, subjects: subjects, students: students, validator: validate, logger: logger}
}

// Enter records or overwrites one mark entry. The score is bounded by
// the subject's max_marks.
func (s *MarkService) Enter(ctx context.Context, req EnterMarkRequest) (*models.Mark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	examType := models.ExamType(req.ExamType)
	if !examType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown exam type %q", req.ExamType))
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if req.MarksObtained > subject.MaxMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("marks obtained exceed max marks %d for subject %s", subject.MaxMarks, subject.Code))
	}

	stored, err := s.repo.Upsert(ctx, &models.Mark{
		StudentID:     req.StudentID,
		SubjectID:     req.SubjectID,
		ExamType:      examType,
		MarksObtained: req.MarksObtained,
		Term:          req.Term,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record mark")
	}
	return stored, nil
}

// Get returns one mark entry with subject metadata.
func (s *MarkService) Get(ctx context.Context, id string) (*models.MarkRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark")
	}
	return record, nil
}

// List returns mark entries matching the filter.
func (s *MarkService) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error) {
	if filter.ExamType != nil && !filter.ExamType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown exam type %q", *filter.ExamType))
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return records, nil
}

// Delete removes one mark entry.
func (s *MarkService) Delete(ctx context.Context, id string) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mark")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "mark not found")
	}
	return nil
}
