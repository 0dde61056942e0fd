package models

import "time"

// PaymentStatus tracks the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusPaid      PaymentStatus = "Paid"
	PaymentStatusOverdue   PaymentStatus = "Overdue"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

// Payment is a tuition charge for one student in one class.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	ClassID       string        `db:"class_id" json:"class_id"`
	EnrollmentID  *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Amount        float64       `db:"amount" json:"amount"`
	Month         string        `db:"month" json:"month"`
	DueDate       time.Time     `db:"due_date" json:"due_date"`
	PaidDate      *time.Time    `db:"paid_date" json:"paid_date,omitempty"`
	Status        PaymentStatus `db:"status" json:"status"`
	PaymentMethod string        `db:"payment_method" json:"payment_method"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	Notes         string        `db:"notes" json:"notes"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with student and class info.
type PaymentDetail struct {
	Payment
	StudentName  *string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail *string `db:"student_email" json:"student_email,omitempty"`
	ClassName    *string `db:"class_name" json:"class_name,omitempty"`
}

// PaymentFilter scopes payment listings.
type PaymentFilter struct {
	StudentID string
	ClassID   string
	Status    PaymentStatus
	Month     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreatePaymentRequest registers a manual charge.
type CreatePaymentRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	ClassID   string     `json:"class_id" validate:"required"`
	Amount    float64    `json:"amount" validate:"required,gt=0"`
	Month     string     `json:"month" validate:"required,max=40"`
	DueDate   *time.Time `json:"due_date" validate:"required"`
	Notes     string     `json:"notes" validate:"max=500"`
}

// UpdatePaymentRequest updates settlement information, typically marking a
// payment as paid.
type UpdatePaymentRequest struct {
	Status        *PaymentStatus `json:"status" validate:"omitempty,oneof=Pending Paid Overdue Cancelled"`
	PaidDate      *time.Time     `json:"paid_date"`
	PaymentMethod *string        `json:"payment_method" validate:"omitempty,max=60"`
	TransactionID *string        `json:"transaction_id" validate:"omitempty,max=120"`
	Notes         *string        `json:"notes" validate:"omitempty,max=500"`
}

// PaymentAggregate is one status bucket of the summary.
type PaymentAggregate struct {
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// MonthlyRevenue is the paid total of a calendar month.
type MonthlyRevenue struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// PaymentSummary aggregates payment totals for the admin dashboard.
type PaymentSummary struct {
	Paid           PaymentAggregate `json:"paid"`
	Pending        PaymentAggregate `json:"pending"`
	Overdue        PaymentAggregate `json:"overdue"`
	Cancelled      PaymentAggregate `json:"cancelled"`
	Outstanding    PaymentAggregate `json:"outstanding"`
	Total          PaymentAggregate `json:"total"`
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// PaymentStatusTotal is a grouped status row read from the database.
type PaymentStatusTotal struct {
	Status PaymentStatus `db:"status"`
	Amount float64       `db:"amount"`
	Count  int           `db:"count"`
}

// PaymentMonthTotal is a grouped (year, month) row of paid revenue.
type PaymentMonthTotal struct {
	Year   int     `db:"year"`
	Month  int     `db:"month"`
	Amount float64 `db:"amount"`
	Count  int     `db:"count"`
}

// ReceiptLink is a signed, expiring download link for a receipt PDF.
type ReceiptLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
