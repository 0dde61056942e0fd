package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

const attendanceDetailSelect = `SELECT a.id, a.student_id, a.class_id, a.date, a.status, a.marked_by, a.marked_at, a.notes,
	s.name AS student_name, c.name AS class_name, m.name AS marker_name
FROM attendance a
LEFT JOIN users s ON s.id = a.student_id
LEFT JOIN classes c ON c.id = a.class_id
LEFT JOIN users m ON m.id = a.marked_by`

// AttendanceRepository persists per-day attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert stores the mark for (student, class, day), overwriting an existing
// mark for the same day.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, student_id, class_id, date, status, marked_by, marked_at, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, class_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at
RETURNING id, student_id, class_id, date, status, marked_by, marked_at, notes`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.ClassID, record.Date,
		record.Status, record.MarkedBy, record.MarkedAt, record.Notes); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

func attendanceConditions(filter models.AttendanceFilter) conditions {
	var conds conditions
	if filter.ClassID != "" {
		conds.add("a.class_id = $%d", filter.ClassID)
	}
	if filter.StudentID != "" {
		conds.add("a.student_id = $%d", filter.StudentID)
	}
	if filter.Status != nil {
		conds.add("a.status = $%d", *filter.Status)
	}
	if filter.DateFrom != nil {
		conds.add("a.date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conds.add("a.date <= $%d", *filter.DateTo)
	}
	return conds
}

var attendanceSorts = map[string]string{
	"date":         "a.date",
	"status":       "a.status",
	"student_name": "s.name",
	"marked_at":    "a.marked_at",
}

// List returns attendance marks matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	conds := attendanceConditions(filter)
	where := conds.where()
	order := sortClause(attendanceSorts, filter.SortBy, "date", filter.SortOrder, "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", attendanceDetailSelect, where, order, limit, offset)
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance a"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// ListAll returns every mark matching the filter, ignoring pagination.
func (r *AttendanceRepository) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	conds := attendanceConditions(filter)
	order := sortClause(attendanceSorts, filter.SortBy, "date", filter.SortOrder, "ASC")
	query := fmt.Sprintf("%s%s ORDER BY %s, s.name ASC", attendanceDetailSelect, conds.where(), order)
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, conds.args...); err != nil {
		return nil, fmt.Errorf("list all attendance: %w", err)
	}
	return records, nil
}

// CountByStatus returns how many marks a student has per status.
func (r *AttendanceRepository) CountByStatus(ctx context.Context, studentID string) (map[models.AttendanceStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM attendance WHERE student_id = $1 GROUP BY status`
	var rows []struct {
		Status models.AttendanceStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("count attendance by status: %w", err)
	}
	counts := make(map[models.AttendanceStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
