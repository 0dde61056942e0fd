package models

import "time"

// ClassLevel is the difficulty tier of a class.
type ClassLevel string

const (
	LevelBeginner     ClassLevel = "Beginner"
	LevelIntermediate ClassLevel = "Intermediate"
	LevelAdvanced     ClassLevel = "Advanced"
)

// ClassStatus tracks whether a class accepts new seats.
type ClassStatus string

const (
	ClassStatusActive   ClassStatus = "Active"
	ClassStatusInactive ClassStatus = "Inactive"
	ClassStatusFull     ClassStatus = "Full"
)

// Class represents a recurring dance class.
type Class struct {
	ID                string      `db:"id" json:"id"`
	Name              string      `db:"name" json:"name"`
	Style             string      `db:"style" json:"style"`
	Level             ClassLevel  `db:"level" json:"level"`
	InstructorID      *string     `db:"instructor_id" json:"instructor_id,omitempty"`
	Schedule          string      `db:"schedule" json:"schedule"`
	Capacity          int         `db:"capacity" json:"capacity"`
	CurrentEnrollment int         `db:"current_enrollment" json:"current_enrollment"`
	Price             float64     `db:"price" json:"price"`
	Status            ClassStatus `db:"status" json:"status"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// HasRoom reports whether another seat can be taken.
func (c Class) HasRoom() bool {
	return c.CurrentEnrollment < c.Capacity
}

// ClassDetail extends Class with optional instructor information.
type ClassDetail struct {
	Class
	InstructorName  *string `db:"instructor_name" json:"instructor_name,omitempty"`
	InstructorEmail *string `db:"instructor_email" json:"instructor_email,omitempty"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Style        string
	Level        ClassLevel
	Status       ClassStatus
	InstructorID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// UpsertClassRequest is the payload for creating or updating a class.
type UpsertClassRequest struct {
	Name         string      `json:"name" validate:"required,min=2,max=120"`
	Style        string      `json:"style" validate:"required,max=60"`
	Level        ClassLevel  `json:"level" validate:"required,oneof=Beginner Intermediate Advanced"`
	InstructorID *string     `json:"instructor_id" validate:"omitempty"`
	Schedule     string      `json:"schedule" validate:"max=200"`
	Capacity     int         `json:"capacity" validate:"required,min=1,max=500"`
	Price        float64     `json:"price" validate:"min=0"`
	Status       ClassStatus `json:"status" validate:"omitempty,oneof=Active Inactive Full"`
}
