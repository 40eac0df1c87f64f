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

// AttendanceRepository handles persistence for period-level attendance.
// The table carries a UNIQUE (student_id, date, period) constraint, so
// marking is a single atomic upsert and concurrent writers cannot
// duplicate a period.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or overwrites the status of one (student, date, period).
// Re-marking updates status, remarks and recorded_by in place; last
// writer wins.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendancePeriod) (*models.AttendancePeriod, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_periods (id, student_id, date, period, status, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date, period)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
RETURNING id, student_id, date, period, status, remarks, recorded_by, created_at, updated_at`
	var stored models.AttendancePeriod
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.Date, record.Period, record.Status, record.Remarks, record.RecordedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance period: %w", err)
	}
	return &stored, nil
}

// BulkUpsert writes many period records in one transaction. All entries
// land or none do.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendancePeriod) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO attendance_periods (id, student_id, date, period, status, remarks, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date, period)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, query, rec.ID, rec.StudentID, rec.Date, rec.Period, rec.Status, rec.Remarks, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("bulk upsert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return nil
}

// List returns attendance rows matching the filter, joined with student
// metadata, plus a total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendancePeriodRecord, int, error) {
	base := `FROM attendance_periods ap JOIN students s ON s.id = ap.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("ap.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassName != "" {
		where = append(where, fmt.Sprintf("s.class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.Section != "" {
		where = append(where, fmt.Sprintf("s.section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ap.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ap.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ap.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"date":   "ap.date",
		"period": "ap.period",
		"status": "ap.status",
	}
	if sortBy == "" {
		sortBy = "date"
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "ap.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ap.id, ap.student_id, ap.date, ap.period, ap.status, ap.remarks, ap.recorded_by, ap.created_at, ap.updated_at,
        s.full_name AS student_name, s.roll_number, s.class_name, s.section
        %s WHERE %s
        ORDER BY %s %s, ap.period ASC
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendancePeriodRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// FetchClassRange returns all period records of a class section within
// [from, to] inclusive. Report builders consume the raw rows.
func (r *AttendanceRepository) FetchClassRange(ctx context.Context, className, section string, from, to time.Time) ([]models.AttendancePeriod, error) {
	const query = `SELECT ap.id, ap.student_id, ap.date, ap.period, ap.status, ap.remarks, ap.recorded_by, ap.created_at, ap.updated_at
FROM attendance_periods ap
JOIN students s ON s.id = ap.student_id
WHERE s.class_name = $1 AND s.section = $2 AND ap.date >= $3 AND ap.date <= $4
ORDER BY ap.date ASC, ap.period ASC`
	var rows []models.AttendancePeriod
	if err := r.db.SelectContext(ctx, &rows, query, className, section, from, to); err != nil {
		return nil, fmt.Errorf("fetch class attendance range: %w", err)
	}
	return rows, nil
}

// FetchStudentRange returns one student's period records within [from, to].
func (r *AttendanceRepository) FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error) {
	const query = `SELECT id, student_id, date, period, status, remarks, recorded_by, created_at, updated_at
FROM attendance_periods
WHERE student_id = $1 AND date >= $2 AND date <= $3
ORDER BY date ASC, period ASC`
	var rows []models.AttendancePeriod
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("fetch student attendance range: %w", err)
	}
	return rows, nil
}

// DeleteDay removes every period record of one student on one date and
// reports how many rows went away.
func (r *AttendanceRepository) DeleteDay(ctx context.Context, studentID string, date time.Time) (int64, error) {
	const query = `DELETE FROM attendance_periods WHERE student_id = $1 AND date = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, date)
	if err != nil {
		return 0, fmt.Errorf("delete attendance day: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance day: %w", err)
	}
	return affected, nil
}
