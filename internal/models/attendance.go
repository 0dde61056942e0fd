package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "Present"
	AttendanceStatusAbsent  AttendanceStatus = "Absent"
	AttendanceStatusLate    AttendanceStatus = "Late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// Attendance is one student's presence in one class on one day.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	Notes     string           `db:"notes" json:"notes"`
}

// AttendanceDetail extends the record with student, class and marker names.
type AttendanceDetail struct {
	Attendance
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
	MarkerName  *string `db:"marker_name" json:"marker_name,omitempty"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// MarkAttendanceRequest records presence for a student on a day.
type MarkAttendanceRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	ClassID   string           `json:"class_id" validate:"required"`
	Date      *time.Time       `json:"date"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=Present Absent Late"`
	Notes     string           `json:"notes" validate:"max=500"`
}

// AttendanceSummary summarises counts for a student.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}
