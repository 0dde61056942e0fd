package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

const paymentInsertQuery = `INSERT INTO payments (id, student_id, class_id, enrollment_id, amount, month, due_date, paid_date, status, payment_method, transaction_id, notes, created_at, updated_at)
VALUES (:id, :student_id, :class_id, :enrollment_id, :amount, :month, :due_date, :paid_date, :status, :payment_method, :transaction_id, :notes, :created_at, :updated_at)`

const paymentDetailSelect = `SELECT p.id, p.student_id, p.class_id, p.enrollment_id, p.amount, p.month, p.due_date, p.paid_date, p.status,
	p.payment_method, p.transaction_id, p.notes, p.created_at, p.updated_at,
	s.name AS student_name, s.email AS student_email, c.name AS class_name
FROM payments p
LEFT JOIN users s ON s.id = p.student_id
LEFT JOIN classes c ON c.id = p.class_id`

// PaymentRepository persists payment records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func preparePayment(payment *models.Payment) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
}

func paymentConditions(filter models.PaymentFilter) conditions {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("p.student_id = $%d", filter.StudentID)
	}
	if filter.ClassID != "" {
		conds.add("p.class_id = $%d", filter.ClassID)
	}
	if filter.Status != "" {
		conds.add("p.status = $%d", filter.Status)
	}
	if filter.Month != "" {
		conds.add("p.month = $%d", filter.Month)
	}
	return conds
}

var paymentSorts = map[string]string{
	"due_date":   "p.due_date",
	"paid_date":  "p.paid_date",
	"amount":     "p.amount",
	"status":     "p.status",
	"created_at": "p.created_at",
}

// List returns payments matching the filter with a total count.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	conds := paymentConditions(filter)
	where := conds.where()
	order := sortClause(paymentSorts, filter.SortBy, "created_at", filter.SortOrder, "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", paymentDetailSelect, where, order, limit, offset)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments p"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListAll returns every payment matching the filter, ignoring pagination.
func (r *PaymentRepository) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error) {
	conds := paymentConditions(filter)
	order := sortClause(paymentSorts, filter.SortBy, "created_at", filter.SortOrder, "DESC")
	query := fmt.Sprintf("%s%s ORDER BY %s", paymentDetailSelect, conds.where(), order)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list all payments: %w", err)
	}
	return payments, nil
}

// FindDetailByID returns a payment joined with student and class names.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, paymentDetailSelect+` WHERE p.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	preparePayment(payment)
	if _, err := r.db.NamedExecContext(ctx, paymentInsertQuery, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update writes the settlement columns of a payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET status = :status, paid_date = :paid_date, payment_method = :payment_method,
transaction_id = :transaction_id, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusTotals returns the amount and count of payments grouped by status.
func (r *PaymentRepository) StatusTotals(ctx context.Context) ([]models.PaymentStatusTotal, error) {
	const query = `SELECT status, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS count FROM payments GROUP BY status`
	var rows []models.PaymentStatusTotal
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("payment status totals: %w", err)
	}
	return rows, nil
}

// MonthlyPaidTotals groups paid revenue by the calendar month of the paid
// date, falling back to the creation time, starting at since.
func (r *PaymentRepository) MonthlyPaidTotals(ctx context.Context, since time.Time) ([]models.PaymentMonthTotal, error) {
	const query = `SELECT
	EXTRACT(YEAR FROM COALESCE(paid_date, created_at) AT TIME ZONE 'UTC')::int AS year,
	EXTRACT(MONTH FROM COALESCE(paid_date, created_at) AT TIME ZONE 'UTC')::int AS month,
	COALESCE(SUM(amount), 0) AS amount,
	COUNT(*) AS count
FROM payments
WHERE status = $1 AND COALESCE(paid_date, created_at) >= $2
GROUP BY 1, 2
ORDER BY 1, 2`
	var rows []models.PaymentMonthTotal
	if err := r.db.SelectContext(ctx, &rows, query, models.PaymentStatusPaid, since); err != nil {
		return nil, fmt.Errorf("monthly paid totals: %w", err)
	}
	return rows, nil
}

// MarkOverdue flips pending payments due before cutoff to overdue.
func (r *PaymentRepository) MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4`
	res, err := r.db.ExecContext(ctx, query, models.PaymentStatusOverdue, time.Now().UTC(), models.PaymentStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark overdue payments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows affected: %w", err)
	}
	return affected, nil
}
