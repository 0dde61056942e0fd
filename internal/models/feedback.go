package models

import "time"

// Feedback is a student's rating of a class.
type Feedback struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	InstructorID *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      string    `db:"comment" json:"comment"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FeedbackDetail joins names for display.
type FeedbackDetail struct {
	Feedback
	StudentName    *string `db:"student_name" json:"student_name,omitempty"`
	ClassName      *string `db:"class_name" json:"class_name,omitempty"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
}

// FeedbackFilter scopes feedback listings.
type FeedbackFilter struct {
	ClassID      string
	StudentID    string
	InstructorID string
	MinRating    int
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// SubmitFeedbackRequest is the payload for rating a class.
type SubmitFeedbackRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// UpdateFeedbackRequest edits an existing feedback entry.
type UpdateFeedbackRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}
