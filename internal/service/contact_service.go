package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

const (
	contactDedupePrefix = "contacts:dedupe:"
	contactDedupeWindow = 5 * time.Minute
)

// Contact submission outcomes recorded in metrics.
const (
	ContactAccepted  = "accepted"
	ContactDuplicate = "duplicate"
	ContactSpam      = "spam"
)

type contactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	FindByID(ctx context.Context, id string) (*models.Contact, error)
	List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ContactStatus) error
	Delete(ctx context.Context, id string) error
}

// SubmissionClaimer records a dedupe key once within ttl.
type SubmissionClaimer interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ContactService handles the public contact form and the admin inbox.
type ContactService struct {
	repo      contactRepository
	claims    SubmissionClaimer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewContactService constructs ContactService. claims may be nil, which
// disables duplicate detection.
func NewContactService(repo contactRepository, claims SubmissionClaimer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ContactService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		repo:      repo,
		claims:    claims,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Submit stores a contact form message. Filled honeypot fields are accepted
// silently and dropped; an identical message inside the dedupe window is a
// conflict.
func (s *ContactService) Submit(ctx context.Context, req models.ContactRequest) (*models.Contact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact payload")
	}

	contact := &models.Contact{
		Name:    plainText(s.sanitizer, req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:   normalizePhone(req.Phone),
		Subject: plainText(s.sanitizer, req.Subject),
		Message: plainText(s.sanitizer, req.Message),
		Status:  models.ContactStatusNew,
	}
	if strings.TrimSpace(req.Website) != "" {
		s.metrics.RecordContact(ContactSpam)
		s.logger.Info("contact honeypot triggered", zap.String("email", contact.Email))
		contact.CreatedAt = s.now().UTC()
		contact.UpdatedAt = contact.CreatedAt
		return contact, nil
	}
	if contact.Message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is required")
	}

	if s.claims != nil {
		fresh, err := s.claims.SetNX(ctx, contactDedupePrefix+contactChecksum(contact), contactDedupeWindow)
		if err != nil {
			s.logger.Warn("contact dedupe unavailable", zap.Error(err))
		} else if !fresh {
			s.metrics.RecordContact(ContactDuplicate)
			return nil, appErrors.Clone(appErrors.ErrConflict, "this message was already sent, please wait before resending")
		}
	}

	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save contact message")
	}
	s.metrics.RecordContact(ContactAccepted)
	return contact, nil
}

// List returns inbox messages with pagination metadata.
func (s *ContactService) List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, *models.Pagination, error) {
	contacts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contacts")
	}
	return contacts, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one message.
func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contact")
	}
	return contact, nil
}

// UpdateStatus moves a message through the inbox.
func (s *ContactService) UpdateStatus(ctx context.Context, id string, req models.UpdateContactStatusRequest) (*models.Contact, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact status")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contact")
	}
	return s.Get(ctx, id)
}

// Delete removes a message.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "contact not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contact")
	}
	return nil
}

func contactChecksum(c *models.Contact) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{c.Email, strings.ToLower(c.Name), strings.ToLower(c.Subject), c.Message}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
