package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

// cachedClassList is the cached form of one class listing page.
type cachedClassList struct {
	Items []models.ClassDetail `json:"items"`
	Total int                  `json:"total"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	users     userReader
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	listTTL   time.Duration
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, users userReader, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, listTTL time.Duration) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, audit: audit, cache: cache, validator: validate, logger: logger, listTTL: listTTL}
}

// List returns classes with pagination metadata and whether the page was
// served from cache.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, bool, error) {
	key := classListCacheKey(filter)
	var cached cachedClassList
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, paginationFor(filter.Page, filter.PageSize, cached.Total), true, nil
	}

	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	if classes == nil {
		classes = []models.ClassDetail{}
	}
	s.cache.Set(ctx, key, &cachedClassList{Items: classes, Total: total}, s.listTTL)
	return classes, paginationFor(filter.Page, filter.PageSize, total), false, nil
}

// Get returns detailed class information.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req models.UpsertClassRequest) (*models.ClassDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:         strings.TrimSpace(req.Name),
		Style:        strings.TrimSpace(req.Style),
		Level:        req.Level,
		InstructorID: req.InstructorID,
		Schedule:     strings.TrimSpace(req.Schedule),
		Capacity:     req.Capacity,
		Price:        req.Price,
		Status:       models.ClassStatusActive,
	}
	if req.Status == models.ClassStatusInactive {
		class.Status = models.ClassStatusInactive
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.invalidateLists(ctx)
	return s.Get(ctx, class.ID)
}

// Update modifies a class record. The status is derived from the seat
// counter unless Inactive is requested.
func (s *ClassService) Update(ctx context.Context, id string, req models.UpsertClassRequest) (*models.ClassDetail, error) {
	if err := s.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class.Name = strings.TrimSpace(req.Name)
	class.Style = strings.TrimSpace(req.Style)
	class.Level = req.Level
	class.InstructorID = req.InstructorID
	class.Schedule = strings.TrimSpace(req.Schedule)
	class.Capacity = req.Capacity
	class.Price = req.Price
	class.Status = models.ClassStatusActive
	if req.Status == models.ClassStatusInactive {
		class.Status = models.ClassStatusInactive
	}
	class.Status = occupancyStatus(class)

	if err := s.repo.Update(ctx, class); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	s.invalidateLists(ctx)
	return s.Get(ctx, id)
}

// Delete removes a class. Enrollments, payments, attendance and feedback
// that reference it are kept.
func (s *ClassService) Delete(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) error {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.invalidateLists(ctx)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionClassDelete, "classes", id,
		map[string]interface{}{"name": class.Name, "current_enrollment": class.CurrentEnrollment}, nil, meta)
	return nil
}

func (s *ClassService) validateRequest(ctx context.Context, req models.UpsertClassRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.InstructorID == nil || *req.InstructorID == "" {
		return nil
	}
	instructor, err := s.users.FindByID(ctx, *req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor.Role != models.RoleInstructor {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user is not an instructor")
	}
	return nil
}

func (s *ClassService) invalidateLists(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyClassesPrefix+"*")
}

func classListCacheKey(filter models.ClassFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%s|%s",
		strings.ToLower(filter.Style), filter.Level, filter.Status, filter.InstructorID,
		strings.ToLower(filter.Search), filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	sum := sha1.Sum([]byte(raw))
	return cacheKeyClassesPrefix + hex.EncodeToString(sum[:])
}
