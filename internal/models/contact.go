package models

import "time"

// ContactStatus tracks inbox handling of a contact message.
type ContactStatus string

const (
	ContactStatusNew      ContactStatus = "New"
	ContactStatusRead     ContactStatus = "Read"
	ContactStatusReplied  ContactStatus = "Replied"
	ContactStatusArchived ContactStatus = "Archived"
)

// Contact is a message submitted through the public contact form.
type Contact struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Email     string        `db:"email" json:"email"`
	Phone     *string       `db:"phone" json:"phone,omitempty"`
	Subject   string        `db:"subject" json:"subject"`
	Message   string        `db:"message" json:"message"`
	Status    ContactStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// ContactFilter scopes inbox listings.
type ContactFilter struct {
	Status   ContactStatus
	Search   string
	Page     int
	PageSize int
}

// ContactRequest is the public contact form payload. Website is a honeypot
// field that humans never fill.
type ContactRequest struct {
	Name    string  `json:"name" validate:"required,min=2,max=100"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Subject string  `json:"subject" validate:"max=150"`
	Message string  `json:"message" validate:"required,min=5,max=5000"`
	Website string  `json:"website"`
}

// UpdateContactStatusRequest moves a message through the inbox.
type UpdateContactStatusRequest struct {
	Status ContactStatus `json:"status" validate:"required,oneof=New Read Replied Archived"`
}
