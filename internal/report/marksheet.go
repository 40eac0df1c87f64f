package report

import (
	"sort"

	"github.com/edutrack/edutrack-api/internal/models"
)

// MarkRow is one subject/exam line on a student mark sheet.
type MarkRow struct {
	SubjectCode   string          `json:"subject_code"`
	SubjectName   string          `json:"subject_name"`
	ExamType      models.ExamType `json:"exam_type"`
	MarksObtained int             `json:"marks_obtained"`
	MaxMarks      int             `json:"max_marks"`
	Percentage    int             `json:"percentage"`
}

// StudentMarksReport is the mark sheet for one student, optionally
// scoped to a single term.
type StudentMarksReport struct {
	StudentID         string    `json:"student_id"`
	RollNumber        string    `json:"roll_number"`
	FullName          string    `json:"full_name"`
	ClassName         string    `json:"class_name"`
	Section           string    `json:"section"`
	Term              string    `json:"term,omitempty"`
	Rows              []MarkRow `json:"rows"`
	TotalObtained     int       `json:"total_obtained"`
	TotalMax          int       `json:"total_max"`
	OverallPercentage int       `json:"overall_percentage"`
}

// BuildStudentMarksReport assembles a mark sheet from stored mark rows.
// Rows come out sorted by subject name then exam type so the rendering
// is stable regardless of insertion order.
func BuildStudentMarksReport(student models.Student, term string, marks []models.MarkRecord) StudentMarksReport {
	rows := make([]MarkRow, 0, len(marks))
	totalObtained := 0
	totalMax := 0
	for _, m := range marks {
		rows = append(rows, MarkRow{
			SubjectCode:   m.SubjectCode,
			SubjectName:   m.SubjectName,
			ExamType:      m.ExamType,
			MarksObtained: m.MarksObtained,
			MaxMarks:      m.MaxMarks,
			Percentage:    RoundPercent(m.MarksObtained, m.MaxMarks),
		})
		totalObtained += m.MarksObtained
		totalMax += m.MaxMarks
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SubjectName != rows[j].SubjectName {
			return rows[i].SubjectName < rows[j].SubjectName
		}
		return rows[i].ExamType < rows[j].ExamType
	})

	return StudentMarksReport{
		StudentID:         student.ID,
		RollNumber:        student.RollNumber,
		FullName:          student.FullName,
		ClassName:         student.ClassName,
		Section:           student.Section,
		Term:              term,
		Rows:              rows,
		TotalObtained:     totalObtained,
		TotalMax:          totalMax,
		OverallPercentage: RoundPercent(totalObtained, totalMax),
	}
}
