package models

// StudentProfile is a student account together with its enrollments.
type StudentProfile struct {
	User
	Enrollments []EnrollmentDetail `json:"enrollments"`
}

// StudentDashboard is the aggregate view rendered on the student home page.
type StudentDashboard struct {
	Student            User               `json:"student"`
	Enrollments        []EnrollmentDetail `json:"enrollments"`
	Payments           []PaymentDetail    `json:"payments"`
	Attendance         AttendanceSummary  `json:"attendance"`
	ActiveClasses      int                `json:"active_classes"`
	WaitlistedClasses  int                `json:"waitlisted_classes"`
	OutstandingBalance float64            `json:"outstanding_balance"`
}
