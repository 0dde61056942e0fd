package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type feedbackRepository interface {
	ExistsForPair(ctx context.Context, studentID, classID string) (bool, error)
	Create(ctx context.Context, feedback *models.Feedback) error
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	FindDetailByID(ctx context.Context, id string) (*models.FeedbackDetail, error)
	Update(ctx context.Context, feedback *models.Feedback) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackDetail, int, error)
	AverageRating(ctx context.Context, classID string) (float64, error)
}

// FeedbackService manages class ratings.
type FeedbackService struct {
	repo      feedbackRepository
	classes   classReader
	validator *validator.Validate
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
}

// NewFeedbackService constructs FeedbackService.
func NewFeedbackService(repo feedbackRepository, classes classReader, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, classes: classes, validator: validate, logger: logger, sanitizer: bluemonday.StrictPolicy()}
}

// Submit records a student's single rating of a class.
func (s *FeedbackService) Submit(ctx context.Context, actor *models.JWTClaims, req models.SubmitFeedbackRequest) (*models.FeedbackDetail, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	exists, err := s.repo.ExistsForPair(ctx, actor.UserID, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing feedback")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted for this class")
	}

	feedback := &models.Feedback{
		ClassID:      class.ID,
		InstructorID: class.InstructorID,
		StudentID:    actor.UserID,
		Rating:       req.Rating,
		Comment:      s.clean(req.Comment),
	}
	if err := s.repo.Create(ctx, feedback); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "feedback already submitted for this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit feedback")
	}
	return s.Get(ctx, feedback.ID)
}

// Update edits the actor's own feedback.
func (s *FeedbackService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateFeedbackRequest) (*models.FeedbackDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	feedback, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.UserID != feedback.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can edit feedback")
	}
	if req.Rating != nil {
		feedback.Rating = *req.Rating
	}
	if req.Comment != nil {
		feedback.Comment = s.clean(*req.Comment)
	}
	if err := s.repo.Update(ctx, feedback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback")
	}
	return s.Get(ctx, id)
}

// Delete removes feedback. Authors and admins may delete.
func (s *FeedbackService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	feedback, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actor == nil || (actor.Role != models.RoleAdmin && actor.UserID != feedback.StudentID) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author or an admin can delete feedback")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete feedback")
	}
	return nil
}

// Get returns feedback with joined names.
func (s *FeedbackService) Get(ctx context.Context, id string) (*models.FeedbackDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return detail, nil
}

// List returns feedback with pagination metadata.
func (s *FeedbackService) List(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByClass returns a class's feedback together with its average rating.
func (s *FeedbackService) ListByClass(ctx context.Context, classID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, float64, error) {
	filter.ClassID = classID
	items, pagination, err := s.List(ctx, filter)
	if err != nil {
		return nil, nil, 0, err
	}
	avg, err := s.repo.AverageRating(ctx, classID)
	if err != nil {
		return nil, nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average rating")
	}
	return items, pagination, avg, nil
}

// ListByStudent returns the feedback a student wrote.
func (s *FeedbackService) ListByStudent(ctx context.Context, studentID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	return s.List(ctx, filter)
}

// ListByInstructor returns the feedback left on an instructor's classes.
func (s *FeedbackService) ListByInstructor(ctx context.Context, instructorID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error) {
	filter.InstructorID = instructorID
	return s.List(ctx, filter)
}

func (s *FeedbackService) load(ctx context.Context, id string) (*models.Feedback, error) {
	feedback, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return feedback, nil
}

func (s *FeedbackService) clean(text string) string {
	return plainText(s.sanitizer, text)
}
