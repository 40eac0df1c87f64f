// Package report turns raw period-level attendance records into the
// report shapes the API exposes. Everything here is pure: inputs are
// already-fetched rosters and records, outputs are freshly built values,
// and no I/O or shared state is involved, so the builders are safe to
// call from any number of request goroutines.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/edutrack/edutrack-api/internal/models"
)

// DateLayout is the calendar-day bucket format. Dates are treated as
// plain Y-M-D values; the stored instant's time-of-day is ignored.
const DateLayout = "2006-01-02"

// DailyRow is one student's flat row in the single-day class view.
// Periods holds exactly PeriodsPerDay statuses indexed by period-1;
// periods without a record carry StatusNotMarked.
type DailyRow struct {
	StudentID  string                `json:"student_id"`
	FullName   string                `json:"full_name"`
	RollNumber string                `json:"roll_number"`
	Periods    []models.PeriodStatus `json:"periods"`
}

// DailyClassReport is the single-day class view.
type DailyClassReport struct {
	Date      string     `json:"date"`
	ClassName string     `json:"class_name"`
	Section   string     `json:"section"`
	Rows      []DailyRow `json:"rows"`
}

// DayRow carries the seven period statuses of one calendar day.
type DayRow struct {
	Date    string                `json:"date"`
	Periods []models.PeriodStatus `json:"periods"`
}

// RangeTotal is a student's aggregate over a date range. Present counts
// only strictly present periods; Marked counts any recorded period;
// Percentage is the strict presence rate (0 when nothing is marked).
type RangeTotal struct {
	Present    int `json:"present"`
	Marked     int `json:"marked"`
	Percentage int `json:"percentage"`
}

// StudentRangeRow is one student's slice of the date-range class view:
// one DayRow per calendar day in the range, plus totals.
type StudentRangeRow struct {
	StudentID  string     `json:"student_id"`
	FullName   string     `json:"full_name"`
	RollNumber string     `json:"roll_number"`
	Days       []DayRow   `json:"days"`
	Total      RangeTotal `json:"total"`
}

// CohortSummary buckets per-student strict presence percentages.
// Students with no marked periods are excluded from the buckets and the
// average, and counted under NoAttendance instead.
type CohortSummary struct {
	Good              int `json:"good"`
	Average           int `json:"average"`
	Poor              int `json:"poor"`
	NoAttendance      int `json:"noAttendance"`
	AverageAttendance int `json:"averageAttendance"`
}

// RangeClassReport is the date-range class view.
type RangeClassReport struct {
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	ClassName string            `json:"class_name"`
	Section   string            `json:"section"`
	Students  []StudentRangeRow `json:"students"`
	Summary   CohortSummary     `json:"summary"`
}

// DetailRow is one period entry in the single-student detail view.
type DetailRow struct {
	Date    string              `json:"date"`
	Period  int                 `json:"period"`
	Session models.Session      `json:"session"`
	Status  models.PeriodStatus `json:"status"`
	Remarks string              `json:"remarks,omitempty"`
}

// DetailSummary counts each recorded status category; percentages are
// over the total recorded periods, not over 7 x days.
type DetailSummary struct {
	Present        int `json:"present"`
	Absent         int `json:"absent"`
	Late           int `json:"late"`
	HalfDay        int `json:"half_day"`
	TotalRecorded  int `json:"total_recorded"`
	PresentPercent int `json:"present_percent"`
	AbsentPercent  int `json:"absent_percent"`
	LatePercent    int `json:"late_percent"`
	HalfDayPercent int `json:"half_day_percent"`
}

// StudentDetailReport is the single-student view over a date range.
type StudentDetailReport struct {
	StudentID string        `json:"student_id"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Rows      []DetailRow   `json:"rows"`
	Summary   DetailSummary `json:"summary"`
}

// RoundPercent computes round-half-up(num/den*100) and returns 0 for a
// zero denominator. All report percentages funnel through here so the
// rounding convention cannot drift between views.
func RoundPercent(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Floor(float64(num)/float64(den)*100 + 0.5))
}

// CountPresent counts strictly present periods.
func CountPresent(statuses []models.PeriodStatus) int {
	n := 0
	for _, s := range statuses {
		if s == models.StatusPresent {
			n++
		}
	}
	return n
}

// CountMarked counts periods with any recorded status.
func CountMarked(statuses []models.PeriodStatus) int {
	n := 0
	for _, s := range statuses {
		if s != models.StatusNotMarked {
			n++
		}
	}
	return n
}

// CountCredited counts periods that earn attendance credit: present,
// late, and half-day all count.
func CountCredited(statuses []models.PeriodStatus) int {
	n := 0
	for _, s := range statuses {
		switch s {
		case models.StatusPresent, models.StatusLate, models.StatusHalfDay:
			n++
		}
	}
	return n
}

// StrictPresenceRate is the percentage of marked periods that are
// strictly present. Range-report totals and the cohort summary use this
// definition.
func StrictPresenceRate(statuses []models.PeriodStatus) int {
	return RoundPercent(CountPresent(statuses), CountMarked(statuses))
}

// AttendanceCreditRate is the percentage of marked periods credited as
// attended (present + late + half-day). The daily view percentage and
// the CSV/XLSX exports use this definition.
func AttendanceCreditRate(statuses []models.PeriodStatus) int {
	return RoundPercent(CountCredited(statuses), CountMarked(statuses))
}

// RollUpDay classifies one student's day from its recorded statuses:
// all present -> Present, some present -> Partial, none present but
// something recorded -> Absent, nothing recorded -> Holiday. This is a
// coarser, independent rule from the percentage-based views.
func RollUpDay(statuses []models.PeriodStatus) models.DayClassification {
	recorded := 0
	present := 0
	for _, s := range statuses {
		if s == models.StatusNotMarked {
			continue
		}
		recorded++
		if s == models.StatusPresent {
			present++
		}
	}
	switch {
	case recorded == 0:
		return models.DayHoliday
	case present == recorded:
		return models.DayPresent
	case present > 0:
		return models.DayPartial
	default:
		return models.DayAbsent
	}
}

// statusGrid indexes records as studentID -> date -> [7]status.
type statusGrid map[string]map[string][]models.PeriodStatus

func buildGrid(records []models.AttendancePeriod) statusGrid {
	grid := make(statusGrid)
	for _, rec := range records {
		if !models.ValidPeriod(rec.Period) || !rec.Status.Valid() {
			continue
		}
		day := rec.Date.Format(DateLayout)
		byDate, ok := grid[rec.StudentID]
		if !ok {
			byDate = make(map[string][]models.PeriodStatus)
			grid[rec.StudentID] = byDate
		}
		statuses, ok := byDate[day]
		if !ok {
			statuses = blankDay()
			byDate[day] = statuses
		}
		statuses[rec.Period-1] = rec.Status
	}
	return grid
}

func blankDay() []models.PeriodStatus {
	statuses := make([]models.PeriodStatus, models.PeriodsPerDay)
	for i := range statuses {
		statuses[i] = models.StatusNotMarked
	}
	return statuses
}

func (g statusGrid) day(studentID, date string) []models.PeriodStatus {
	if byDate, ok := g[studentID]; ok {
		if statuses, ok := byDate[date]; ok {
			out := make([]models.PeriodStatus, models.PeriodsPerDay)
			copy(out, statuses)
			return out
		}
	}
	return blankDay()
}

// BuildDailyClassReport produces the single-day class view. Every roster
// student appears exactly once; students without records render all
// periods as not-marked.
func BuildDailyClassReport(date time.Time, className, section string, roster []models.RosterEntry, records []models.AttendancePeriod) DailyClassReport {
	grid := buildGrid(records)
	day := date.Format(DateLayout)

	rows := make([]DailyRow, 0, len(roster))
	for _, student := range roster {
		rows = append(rows, DailyRow{
			StudentID:  student.StudentID,
			FullName:   student.FullName,
			RollNumber: student.RollNumber,
			Periods:    grid.day(student.StudentID, day),
		})
	}
	return DailyClassReport{Date: day, ClassName: className, Section: section, Rows: rows}
}

// BuildRangeClassReport produces the date-range class view: per student
// one row per calendar day in [start, end] inclusive, per-student
// totals, and the cohort summary. The range must be ordered; an
// inverted range is rejected rather than silently producing an empty
// report.
func BuildRangeClassReport(start, end time.Time, className, section string, roster []models.RosterEntry, records []models.AttendancePeriod) (RangeClassReport, error) {
	days, err := daysBetween(start, end)
	if err != nil {
		return RangeClassReport{}, err
	}
	grid := buildGrid(records)

	students := make([]StudentRangeRow, 0, len(roster))
	var summary CohortSummary
	sumPresent, sumMarked := 0, 0

	for _, student := range roster {
		row := StudentRangeRow{
			StudentID:  student.StudentID,
			FullName:   student.FullName,
			RollNumber: student.RollNumber,
			Days:       make([]DayRow, 0, len(days)),
		}
		for _, day := range days {
			statuses := grid.day(student.StudentID, day)
			row.Days = append(row.Days, DayRow{Date: day, Periods: statuses})
			row.Total.Present += CountPresent(statuses)
			row.Total.Marked += CountMarked(statuses)
		}
		row.Total.Percentage = RoundPercent(row.Total.Present, row.Total.Marked)

		if row.Total.Marked == 0 {
			summary.NoAttendance++
		} else {
			sumPresent += row.Total.Present
			sumMarked += row.Total.Marked
			switch {
			case row.Total.Percentage >= 75:
				summary.Good++
			case row.Total.Percentage >= 50:
				summary.Average++
			default:
				summary.Poor++
			}
		}
		students = append(students, row)
	}
	summary.AverageAttendance = RoundPercent(sumPresent, sumMarked)

	return RangeClassReport{
		StartDate: start.Format(DateLayout),
		EndDate:   end.Format(DateLayout),
		ClassName: className,
		Section:   section,
		Students:  students,
		Summary:   summary,
	}, nil
}

// BuildStudentDetailReport flattens one student's periods across a date
// range. By default only recorded periods are emitted; includeUnmarked
// additionally synthesizes not-marked rows for every gap so consumers
// that want a dense grid get one.
func BuildStudentDetailReport(studentID string, start, end time.Time, records []models.AttendancePeriod, includeUnmarked bool) (StudentDetailReport, error) {
	days, err := daysBetween(start, end)
	if err != nil {
		return StudentDetailReport{}, err
	}

	remarks := make(map[string]string)
	for _, rec := range records {
		if rec.StudentID != studentID || rec.Remarks == nil || *rec.Remarks == "" {
			continue
		}
		remarks[fmt.Sprintf("%s#%d", rec.Date.Format(DateLayout), rec.Period)] = *rec.Remarks
	}
	grid := buildGrid(records)

	out := StudentDetailReport{
		StudentID: studentID,
		StartDate: start.Format(DateLayout),
		EndDate:   end.Format(DateLayout),
		Rows:      []DetailRow{},
	}
	for _, day := range days {
		statuses := grid.day(studentID, day)
		for period := 1; period <= models.PeriodsPerDay; period++ {
			status := statuses[period-1]
			if status == models.StatusNotMarked {
				if !includeUnmarked {
					continue
				}
			} else {
				out.Summary.TotalRecorded++
				switch status {
				case models.StatusPresent:
					out.Summary.Present++
				case models.StatusAbsent:
					out.Summary.Absent++
				case models.StatusLate:
					out.Summary.Late++
				case models.StatusHalfDay:
					out.Summary.HalfDay++
				}
			}
			out.Rows = append(out.Rows, DetailRow{
				Date:    day,
				Period:  period,
				Session: models.SessionOf(period),
				Status:  status,
				Remarks: remarks[fmt.Sprintf("%s#%d", day, period)],
			})
		}
	}

	total := out.Summary.TotalRecorded
	out.Summary.PresentPercent = RoundPercent(out.Summary.Present, total)
	out.Summary.AbsentPercent = RoundPercent(out.Summary.Absent, total)
	out.Summary.LatePercent = RoundPercent(out.Summary.Late, total)
	out.Summary.HalfDayPercent = RoundPercent(out.Summary.HalfDay, total)
	return out, nil
}

// daysBetween expands [start, end] into contiguous ascending day keys.
func daysBetween(start, end time.Time) ([]string, error) {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if startDay.After(endDay) {
		return nil, fmt.Errorf("start date %s is after end date %s", startDay.Format(DateLayout), endDay.Format(DateLayout))
	}
	days := make([]string, 0, int(endDay.Sub(startDay).Hours()/24)+1)
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}
