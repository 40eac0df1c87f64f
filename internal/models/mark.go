package models

import "time"

// ExamType distinguishes repeated mark entries for the same
// student/subject/term.
type ExamType string

const (
	ExamInternal1  ExamType = "INTERNAL1"
	ExamInternal2  ExamType = "INTERNAL2"
	ExamSemester   ExamType = "SEMESTER"
	ExamAssignment ExamType = "ASSIGNMENT"
	ExamOther      ExamType = "OTHER"
)

// Valid returns true when the exam type is a supported value.
func (t ExamType) Valid() bool {
	switch t {
	case ExamInternal1, ExamInternal2, ExamSemester, ExamAssignment, ExamOther:
		return true
	default:
		return false
	}
}

// Mark stores marks obtained by a student in one subject exam. At most
// one row exists per (student, subject, exam type, term); writes upsert.
type Mark struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	ExamType      ExamType  `db:"exam_type" json:"exam_type"`
	MarksObtained int       `db:"marks_obtained" json:"marks_obtained"`
	Term          string    `db:"term" json:"term"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// MarkRecord extends a mark with subject metadata for listings and
// report cards.
type MarkRecord struct {
	Mark
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	MaxMarks    int    `db:"max_marks" json:"max_marks"`
}

// MarkFilter scopes mark listing queries.
type MarkFilter struct {
	StudentID string
	SubjectID string
	ExamType  *ExamType
	Term      string
}
