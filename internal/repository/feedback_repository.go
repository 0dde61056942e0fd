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

const feedbackColumns = `id, class_id, instructor_id, student_id, rating, comment, submitted_at, updated_at`

const feedbackDetailSelect = `SELECT f.id, f.class_id, f.instructor_id, f.student_id, f.rating, f.comment, f.submitted_at, f.updated_at,
	s.name AS student_name, c.name AS class_name, i.name AS instructor_name
FROM feedback f
LEFT JOIN users s ON s.id = f.student_id
LEFT JOIN classes c ON c.id = f.class_id
LEFT JOIN users i ON i.id = f.instructor_id`

// FeedbackRepository persists class feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ExistsForPair reports whether the student already rated the class.
func (r *FeedbackRepository) ExistsForPair(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM feedback WHERE student_id = $1 AND class_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, classID); err != nil {
		return false, fmt.Errorf("check feedback pair: %w", err)
	}
	return exists, nil
}

// Create inserts a feedback entry.
func (r *FeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if feedback.SubmittedAt.IsZero() {
		feedback.SubmittedAt = now
	}
	feedback.UpdatedAt = now
	const query = `INSERT INTO feedback (id, class_id, instructor_id, student_id, rating, comment, submitted_at, updated_at)
VALUES (:id, :class_id, :instructor_id, :student_id, :rating, :comment, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// FindByID returns a feedback entry.
func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.GetContext(ctx, &feedback, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// FindDetailByID returns a feedback entry with joined names.
func (r *FeedbackRepository) FindDetailByID(ctx context.Context, id string) (*models.FeedbackDetail, error) {
	var detail models.FeedbackDetail
	if err := r.db.GetContext(ctx, &detail, feedbackDetailSelect+` WHERE f.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Update writes rating and comment.
func (r *FeedbackRepository) Update(ctx context.Context, feedback *models.Feedback) error {
	feedback.UpdatedAt = time.Now().UTC()
	const query = `UPDATE feedback SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, feedback)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a feedback entry.
func (r *FeedbackRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func feedbackConditions(filter models.FeedbackFilter) conditions {
	var conds conditions
	if filter.ClassID != "" {
		conds.add("f.class_id = $%d", filter.ClassID)
	}
	if filter.StudentID != "" {
		conds.add("f.student_id = $%d", filter.StudentID)
	}
	if filter.InstructorID != "" {
		conds.add("f.instructor_id = $%d", filter.InstructorID)
	}
	if filter.MinRating > 0 {
		conds.add("f.rating >= $%d", filter.MinRating)
	}
	return conds
}

// List returns feedback matching the filter.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackDetail, int, error) {
	conds := feedbackConditions(filter)
	where := conds.where()
	allowedSorts := map[string]string{
		"submitted_at": "f.submitted_at",
		"rating":       "f.rating",
	}
	order := sortClause(allowedSorts, filter.SortBy, "submitted_at", filter.SortOrder, "DESC")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", feedbackDetailSelect, where, order, limit, offset)
	var items []models.FeedbackDetail
	if err := r.db.SelectContext(ctx, &items, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM feedback f"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}
	return items, total, nil
}

// AverageRating returns the mean rating of a class, zero when unrated.
func (r *FeedbackRepository) AverageRating(ctx context.Context, classID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(rating), 0)::float8 FROM feedback WHERE class_id = $1`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, classID); err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}
	return avg, nil
}
