package models

import "time"

// PeriodStatus represents the recorded status for one teaching period.
type PeriodStatus string

const (
	StatusPresent PeriodStatus = "present"
	StatusAbsent  PeriodStatus = "absent"
	StatusLate    PeriodStatus = "late"
	StatusHalfDay PeriodStatus = "half-day"

	// StatusNotMarked is never stored; report builders synthesize it for
	// periods without a record.
	StatusNotMarked PeriodStatus = "not-marked"
)

// Valid returns true when the status is a storable value.
func (s PeriodStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay:
		return true
	default:
		return false
	}
}

// Session identifies the half of the school day a period belongs to.
type Session string

const (
	SessionForenoon  Session = "forenoon"
	SessionAfternoon Session = "afternoon"
)

// Periods per day and the forenoon/afternoon split.
const (
	PeriodsPerDay      = 7
	LastForenoonPeriod = 4
)

// SessionOf maps a period number to its session: 1-4 forenoon, 5-7 afternoon.
func SessionOf(period int) Session {
	if period <= LastForenoonPeriod {
		return SessionForenoon
	}
	return SessionAfternoon
}

// ValidPeriod reports whether the period number is in range.
func ValidPeriod(period int) bool {
	return period >= 1 && period <= PeriodsPerDay
}

// AttendancePeriod is the atomic attendance unit: one status for one
// (student, date, period). At most one row exists per key; marking an
// already-marked period updates it in place.
type AttendancePeriod struct {
	ID         string       `db:"id" json:"id"`
	StudentID  string       `db:"student_id" json:"student_id"`
	Date       time.Time    `db:"date" json:"date"`
	Period     int          `db:"period" json:"period"`
	Status     PeriodStatus `db:"status" json:"status"`
	Remarks    *string      `db:"remarks" json:"remarks,omitempty"`
	RecordedBy string       `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// AttendancePeriodRecord extends the row with student metadata for listings.
type AttendancePeriodRecord struct {
	AttendancePeriod
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  string `db:"roll_number" json:"roll_number"`
	ClassName   string `db:"class_name" json:"class_name"`
	Section     string `db:"section" json:"section"`
}

// AttendanceFilter defines listing query filters.
type AttendanceFilter struct {
	StudentID string
	ClassName string
	Section   string
	Status    *PeriodStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// DayClassification is the coarse roll-up of one student's day.
type DayClassification string

const (
	DayPresent DayClassification = "Present"
	DayPartial DayClassification = "Partial"
	DayAbsent  DayClassification = "Absent"
	DayHoliday DayClassification = "Holiday"
)
