package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edutrack/edutrack-api/internal/models"
)

// MarkRepository handles persistence for exam marks. The table carries a
// UNIQUE (student_id, subject_id, exam_type, term) constraint; writes
// upsert so re-entering a score overwrites the previous one.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs the repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// Upsert inserts or overwrites one mark entry.
func (r *MarkRepository) Upsert(ctx context.Context, mark *models.Mark) (*models.Mark, error) {
	now := time.Now().UTC()
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO marks (id, student_id, subject_id, exam_type, marks_obtained, term, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, subject_id, exam_type, term)
DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, subject_id, exam_type, marks_obtained, term, created_at, updated_at`
	var stored models.Mark
	if err := r.db.GetContext(ctx, &stored, query, mark.ID, mark.StudentID, mark.SubjectID, mark.ExamType, mark.MarksObtained, mark.Term, mark.CreatedAt, mark.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert mark: %w", err)
	}
	return &stored, nil
}

// FindByID fetches a mark joined with subject metadata.
func (r *MarkRepository) FindByID(ctx context.Context, id string) (*models.MarkRecord, error) {
	const query = `SELECT m.id, m.student_id, m.subject_id, m.exam_type, m.marks_obtained, m.term, m.created_at, m.updated_at,
        sub.name AS subject_name, sub.code AS subject_code, sub.max_marks
FROM marks m JOIN subjects sub ON sub.id = m.subject_id
WHERE m.id = $1 LIMIT 1`
	var record models.MarkRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns marks matching the filter, joined with subject metadata.
func (r *MarkRepository) List(ctx context.Context, filter models.MarkFilter) ([]models.MarkRecord, error) {
	base := `FROM marks m JOIN subjects sub ON sub.id = m.subject_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("m.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("m.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ExamType != nil && filter.ExamType.Valid() {
		where = append(where, fmt.Sprintf("m.exam_type = $%d", len(args)+1))
		args = append(args, *filter.ExamType)
	}
	if filter.Term != "" {
		where = append(where, fmt.Sprintf("m.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}

	query := fmt.Sprintf(`SELECT m.id, m.student_id, m.subject_id, m.exam_type, m.marks_obtained, m.term, m.created_at, m.updated_at,
        sub.name AS subject_name, sub.code AS subject_code, sub.max_marks
        %s WHERE %s
        ORDER BY m.term ASC, sub.name ASC, m.exam_type ASC`, base, strings.Join(where, " AND "))

	var records []models.MarkRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return records, nil
}

// Delete removes one mark entry.
func (r *MarkRepository) Delete(ctx context.Context, id string) (int64, error) {
	const query = `DELETE FROM marks WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete mark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete mark: %w", err)
	}
	return affected, nil
}
