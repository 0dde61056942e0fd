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

const classColumns = `c.id, c.name, c.style, c.level, c.instructor_id, c.schedule, c.capacity, c.current_enrollment, c.price, c.status, c.created_at, c.updated_at`

const classDetailSelect = `SELECT ` + classColumns + `, u.name AS instructor_name, u.email AS instructor_email
FROM classes c
LEFT JOIN users u ON u.id = c.instructor_id`

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var conds conditions
	if filter.Style != "" {
		conds.add("LOWER(c.style) = LOWER($%d)", filter.Style)
	}
	if filter.Level != "" {
		conds.add("c.level = $%d", filter.Level)
	}
	if filter.Status != "" {
		conds.add("c.status = $%d", filter.Status)
	}
	if filter.InstructorID != "" {
		conds.add("c.instructor_id = $%d", filter.InstructorID)
	}
	if filter.Search != "" {
		conds.addSearch(filter.Search, "c.name", "c.style")
	}
	where := conds.where()

	allowedSorts := map[string]string{
		"name":       "c.name",
		"style":      "c.style",
		"level":      "c.level",
		"price":      "c.price",
		"created_at": "c.created_at",
	}
	order := sortClause(allowedSorts, filter.SortBy, "created_at", filter.SortOrder, "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", classDetailSelect, where, order, limit, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes c WHERE c.id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns class with joined instructor fields if available.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, classDetailSelect+` WHERE c.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, style, level, instructor_id, schedule, capacity, current_enrollment, price, status, created_at, updated_at) VALUES (:id, :name, :style, :level, :instructor_id, :schedule, :capacity, :current_enrollment, :price, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies the editable columns of a class. The occupancy counter is
// left untouched and the status is recomputed against it in the same
// statement, so a concurrent enrollment cannot be overwritten.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET
	name = $2, style = $3, level = $4, instructor_id = $5, schedule = $6, capacity = $7, price = $8,
	status = CASE
		WHEN $9 = 'Inactive' THEN 'Inactive'
		WHEN current_enrollment >= $7 THEN 'Full'
		ELSE 'Active'
	END,
	updated_at = $10
WHERE id = $1
RETURNING current_enrollment, status, created_at`
	row := r.db.QueryRowxContext(ctx, query, class.ID, class.Name, class.Style, class.Level, class.InstructorID,
		class.Schedule, class.Capacity, class.Price, string(class.Status), class.UpdatedAt)
	if err := row.Scan(&class.CurrentEnrollment, &class.Status, &class.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class record. Rows referencing the class are left in place.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
