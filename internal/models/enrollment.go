package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "Pending"
	EnrollmentStatusActive    EnrollmentStatus = "Active"
	EnrollmentStatusCompleted EnrollmentStatus = "Completed"
	EnrollmentStatusDropped   EnrollmentStatus = "Dropped"
	EnrollmentStatusRejected  EnrollmentStatus = "Rejected"
)

// Open reports whether the status still counts against the one-per-pair rule.
func (s EnrollmentStatus) Open() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusActive
}

// Enrollment captures a student's registration to a class.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	ClassID          string           `db:"class_id" json:"class_id"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	IsWaitlisted     bool             `db:"is_waitlisted" json:"is_waitlisted"`
	WaitlistPosition *int             `db:"waitlist_position" json:"waitlist_position,omitempty"`
	ApprovedAt       *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy       *string          `db:"approved_by" json:"approved_by,omitempty"`
}

// Seated reports whether the enrollment occupies a seat in its class.
func (e Enrollment) Seated() bool {
	return e.Status == EnrollmentStatusActive && !e.IsWaitlisted
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   *string  `db:"student_name" json:"student_name,omitempty"`
	StudentEmail  *string  `db:"student_email" json:"student_email,omitempty"`
	ClassName     *string  `db:"class_name" json:"class_name,omitempty"`
	ClassStyle    *string  `db:"class_style" json:"class_style,omitempty"`
	ClassLevel    *string  `db:"class_level" json:"class_level,omitempty"`
	ClassSchedule *string  `db:"class_schedule" json:"class_schedule,omitempty"`
	ClassPrice    *float64 `db:"class_price" json:"class_price,omitempty"`
	ApproverName  *string  `db:"approver_name" json:"approver_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	ClassID      string
	Status       EnrollmentStatus
	IsWaitlisted *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CreateEnrollmentRequest asks for a seat in a class. StudentID is only
// honoured for admins; students always enroll themselves.
type CreateEnrollmentRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	StudentID string `json:"student_id"`
}
