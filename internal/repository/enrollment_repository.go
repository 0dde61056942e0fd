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

const enrollmentColumns = `id, student_id, class_id, enrolled_at, status, is_waitlisted, waitlist_position, approved_at, approved_by`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.class_id, e.enrolled_at, e.status, e.is_waitlisted, e.waitlist_position, e.approved_at, e.approved_by,
	s.name AS student_name, s.email AS student_email,
	c.name AS class_name, c.style AS class_style, c.level AS class_level, c.schedule AS class_schedule, c.price AS class_price,
	a.name AS approver_name
FROM enrollments e
LEFT JOIN users s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id
LEFT JOIN users a ON a.id = e.approved_by`

// EnrollmentTx exposes the reads and writes of one enrollment lifecycle
// transaction. Callers lock the class row before touching its enrollments.
type EnrollmentTx interface {
	LockClass(ctx context.Context, classID string) (*models.Class, error)
	FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	LockEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsOpenEnrollment(ctx context.Context, studentID, classID string) (bool, error)
	CountWaitlisted(ctx context.Context, classID string) (int, error)
	NextWaitlisted(ctx context.Context, classID string) (*models.Enrollment, error)
	InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	DeleteEnrollment(ctx context.Context, id string) error
	ShiftWaitlistAfter(ctx context.Context, classID string, position int) error
	UpdateClassOccupancy(ctx context.Context, classID string, current int, status models.ClassStatus) error
	InsertPayment(ctx context.Context, payment *models.Payment) error
}

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// RunInTx executes fn inside a single database transaction. Any error
// returned by fn rolls back every write it performed.
func (r *EnrollmentRepository) RunInTx(ctx context.Context, fn func(tx EnrollmentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&enrollmentTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("e.student_id = $%d", filter.StudentID)
	}
	if filter.ClassID != "" {
		conds.add("e.class_id = $%d", filter.ClassID)
	}
	if filter.Status != "" {
		conds.add("e.status = $%d", filter.Status)
	}
	if filter.IsWaitlisted != nil {
		conds.add("e.is_waitlisted = $%d", *filter.IsWaitlisted)
	}
	where := conds.where()

	allowedSorts := map[string]string{
		"enrolled_at":       "e.enrolled_at",
		"status":            "e.status",
		"waitlist_position": "e.waitlist_position",
		"student_name":      "s.name",
		"class_name":        "c.name",
	}
	order := sortClause(allowedSorts, filter.SortBy, "enrolled_at", filter.SortOrder, "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", enrollmentDetailSelect, where, order, limit, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments e"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindDetailByID returns an enrollment with student and class summaries.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

type enrollmentTx struct {
	tx *sqlx.Tx
}

func (t *enrollmentTx) LockClass(ctx context.Context, classID string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes c WHERE c.id = $1 FOR UPDATE`
	var class models.Class
	if err := t.tx.GetContext(ctx, &class, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock class: %w", err)
	}
	return &class, nil
}

func (t *enrollmentTx) FindEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	return t.getEnrollment(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
}

func (t *enrollmentTx) LockEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	return t.getEnrollment(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id)
}

func (t *enrollmentTx) getEnrollment(ctx context.Context, query string, args ...interface{}) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := t.tx.GetContext(ctx, &enrollment, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

func (t *enrollmentTx) ExistsOpenEnrollment(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND status IN ($3, $4))`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, studentID, classID, models.EnrollmentStatusPending, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return exists, nil
}

func (t *enrollmentTx) CountWaitlisted(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND is_waitlisted = TRUE`
	var count int
	if err := t.tx.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count waitlisted: %w", err)
	}
	return count, nil
}

func (t *enrollmentTx) NextWaitlisted(ctx context.Context, classID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
WHERE class_id = $1 AND is_waitlisted = TRUE
ORDER BY waitlist_position ASC NULLS LAST, enrolled_at ASC
LIMIT 1
FOR UPDATE`
	return t.getEnrollment(ctx, query, classID)
}

func (t *enrollmentTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, enrolled_at, status, is_waitlisted, waitlist_position, approved_at, approved_by)
VALUES (:id, :student_id, :class_id, :enrolled_at, :status, :is_waitlisted, :waitlist_position, :approved_at, :approved_by)`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = :status, is_waitlisted = :is_waitlisted, waitlist_position = :waitlist_position,
approved_at = :approved_at, approved_by = :approved_by WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) DeleteEnrollment(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) ShiftWaitlistAfter(ctx context.Context, classID string, position int) error {
	const query = `UPDATE enrollments SET waitlist_position = waitlist_position - 1
WHERE class_id = $1 AND is_waitlisted = TRUE AND waitlist_position > $2`
	if _, err := t.tx.ExecContext(ctx, query, classID, position); err != nil {
		return fmt.Errorf("shift waitlist: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateClassOccupancy(ctx context.Context, classID string, current int, status models.ClassStatus) error {
	const query = `UPDATE classes SET current_enrollment = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, classID, current, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class occupancy: %w", err)
	}
	return nil
}

func (t *enrollmentTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	preparePayment(payment)
	if _, err := t.tx.NamedExecContext(ctx, paymentInsertQuery, payment); err != nil {
		return fmt.Errorf("create enrollment payment: %w", err)
	}
	return nil
}
