package models

import "time"

// Student represents a learner registered in the institution. Login
// credentials live on the linked User account (UserID).
type Student struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	RollNumber   string    `db:"roll_number" json:"roll_number"`
	ClassName    string    `db:"class_name" json:"class_name"`
	Section      string    `db:"section" json:"section"`
	GuardianName string    `db:"guardian_name" json:"guardian_name"`
	Phone        string    `db:"phone" json:"phone"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassName string
	Section   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RosterEntry is the slim student projection report builders consume.
type RosterEntry struct {
	StudentID  string `db:"id" json:"student_id"`
	FullName   string `db:"full_name" json:"full_name"`
	RollNumber string `db:"roll_number" json:"roll_number"`
	ClassName  string `db:"class_name" json:"class_name"`
	Section    string `db:"section" json:"section"`
}
