package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edutrack/edutrack-api/internal/models"
	"github.com/edutrack/edutrack-api/internal/report"
	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendancePeriod) (*models.AttendancePeriod, error)
	BulkUpsert(ctx context.Context, records []models.AttendancePeriod) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendancePeriodRecord, int, error)
	FetchStudentRange(ctx context.Context, studentID string, from, to time.Time) ([]models.AttendancePeriod, error)
	DeleteDay(ctx context.Context, studentID string, date time.Time) (int64, error)
}

type attendanceStudentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// MarkAttendanceRequest records one period status for one student.
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Period    int     `json:"period" validate:"required,min=1,max=7"`
	Status    string  `json:"status" validate:"required"`
	Remarks   *string `json:"remarks"`
}

// BulkAttendanceEntry is one period entry inside a bulk marking call.
type BulkAttendanceEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Period    int     `json:"period" validate:"required,min=1,max=7"`
	Status    string  `json:"status" validate:"required"`
	Remarks   *string `json:"remarks"`
}

// BulkMarkAttendanceRequest records many period statuses on one date.
type BulkMarkAttendanceRequest struct {
	Date    string                `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []BulkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// StudentDayAttendance is the seven-period view of one student's day
// together with its coarse classification.
type StudentDayAttendance struct {
	StudentID      string                   `json:"student_id"`
	Date           string                   `json:"date"`
	Periods        []models.PeriodStatus    `json:"periods"`
	Classification models.DayClassification `json:"classification"`
}

// AttendanceService handles period-level attendance use-cases.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentFinder
	cache     reportCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentFinder, cache reportCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, students: students, cache: cache, validator: validate, logger: logger}
}

// Mark records or overwrites the status of one (student, date, period).
// The write is a single upsert, so concurrent markers of the same
// period resolve to last writer wins without duplicates.
func (s *AttendanceService) Mark(ctx context.Context, recordedBy string, req MarkAttendanceRequest) (*models.AttendancePeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.PeriodStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}
	date, err := time.Parse(report.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	stored, err := s.repo.Upsert(ctx, &models.AttendancePeriod{
		StudentID:  req.StudentID,
		Date:       date,
		Period:     req.Period,
		Status:     status,
		Remarks:    req.Remarks,
		RecordedBy: recordedBy,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.invalidateReports(ctx, student.ClassName, student.Section, req.StudentID)
	return stored, nil
}

// BulkMark records many period statuses for one date atomically.
func (s *AttendanceService) BulkMark(ctx context.Context, recordedBy string, req BulkMarkAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	date, err := time.Parse(report.DateLayout, req.Date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}

	records := make([]models.AttendancePeriod, 0, len(req.Entries))
	seen := make(map[string]bool, len(req.Entries))
	for i, entry := range req.Entries {
		status := models.PeriodStatus(entry.Status)
		if !status.Valid() {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d: unknown attendance status %q", i, entry.Status))
		}
		if !seen[entry.StudentID] {
			seen[entry.StudentID] = true
			if _, err := s.students.FindByID(ctx, entry.StudentID); err != nil {
				if err == sql.ErrNoRows {
					return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d: unknown student %q", i, entry.StudentID))
				}
				return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
			}
		}
		records = append(records, models.AttendancePeriod{
			StudentID:  entry.StudentID,
			Date:       date,
			Period:     entry.Period,
			Status:     status,
			Remarks:    entry.Remarks,
			RecordedBy: recordedBy,
		})
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record bulk attendance")
	}

	s.invalidateReports(ctx, "", "", "")
	s.logger.Info("bulk attendance recorded",
		zap.String("date", req.Date),
		zap.Int("entries", len(records)))
	return len(records), nil
}

// List returns attendance rows matching the filter with pagination.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendancePeriodRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// StudentDay returns one student's seven periods on one date plus the
// Present/Partial/Absent/Holiday roll-up.
func (s *AttendanceService) StudentDay(ctx context.Context, studentID, dateRaw string) (*StudentDayAttendance, error) {
	date, err := time.Parse(report.DateLayout, dateRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	records, err := s.repo.FetchStudentRange(ctx, studentID, date, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	periods := make([]models.PeriodStatus, models.PeriodsPerDay)
	for i := range periods {
		periods[i] = models.StatusNotMarked
	}
	for _, rec := range records {
		if models.ValidPeriod(rec.Period) {
			periods[rec.Period-1] = rec.Status
		}
	}

	return &StudentDayAttendance{
		StudentID:      studentID,
		Date:           dateRaw,
		Periods:        periods,
		Classification: report.RollUpDay(periods),
	}, nil
}

// DeleteDay removes every period record of one student on one date.
func (s *AttendanceService) DeleteDay(ctx context.Context, studentID, dateRaw string) (int64, error) {
	date, err := time.Parse(report.DateLayout, dateRaw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	affected, err := s.repo.DeleteDay(ctx, studentID, date)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance day")
	}
	if affected == 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "no attendance recorded on this date")
	}

	s.invalidateReports(ctx, student.ClassName, student.Section, studentID)
	return affected, nil
}

// invalidateReports drops cached report payloads after a write. Empty
// scope arguments widen the invalidation to all cached reports.
func (s *AttendanceService) invalidateReports(ctx context.Context, className, section, studentID string) {
	if s.cache == nil {
		return
	}
	patterns := []string{}
	if className != "" && section != "" {
		patterns = append(patterns, fmt.Sprintf("report:class:%s:%s:*", className, section))
	}
	if studentID != "" {
		patterns = append(patterns, fmt.Sprintf("report:student:%s:*", studentID))
	}
	if len(patterns) == 0 {
		patterns = append(patterns, "report:*")
	}
	for _, pattern := range patterns {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate report cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}
