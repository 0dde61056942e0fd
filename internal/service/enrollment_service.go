package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/internal/repository"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type enrollmentStore interface {
	RunInTx(ctx context.Context, fn func(tx repository.EnrollmentTx) error) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// DropResult reports the outcome of removing an enrollment.
type DropResult struct {
	Removed  models.Enrollment  `json:"removed"`
	Promoted *models.Enrollment `json:"promoted,omitempty"`
}

// EnrollmentService runs the enrollment, waitlist and promotion lifecycle.
// Every mutation holds the class row lock for its whole transaction, so the
// seat counter, waitlist positions and generated payments stay consistent
// under concurrent requests.
type EnrollmentService struct {
	store     enrollmentStore
	users     userReader
	audit     auditWriter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store enrollmentStore, users userReader, audit auditWriter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		store:     store,
		users:     users,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByStudent returns the enrollments of one student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	return s.List(ctx, filter)
}

// ListByClass returns the enrollments of one class.
func (s *EnrollmentService) ListByClass(ctx context.Context, classID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	filter.ClassID = classID
	return s.List(ctx, filter)
}

// Get returns one enrollment with joined student and class fields.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.store.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Create enrolls a student into a class. A student always enrolls
// themselves; an admin names the student. When the class is full the
// enrollment joins the tail of the waitlist instead of taking a seat.
func (s *EnrollmentService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch actor.Role {
	case models.RoleStudent:
		req.StudentID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students and admins can create enrollments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}

	var (
		enrollment models.Enrollment
		outcome    string
	)
	err = s.store.RunInTx(ctx, func(tx repository.EnrollmentTx) error {
		class, err := tx.LockClass(ctx, req.ClassID)
		if err != nil {
			return notFoundOr(err, "class not found", "failed to lock class")
		}
		exists, err := tx.ExistsOpenEnrollment(ctx, req.StudentID, class.ID)
		if err != nil {
			return internal(err, "failed to check existing enrollment")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment for this class")
		}
		if class.Status == models.ClassStatusInactive {
			return appErrors.Clone(appErrors.ErrValidation, "class is not accepting enrollments")
		}

		enrollment = models.Enrollment{
			StudentID:  req.StudentID,
			ClassID:    class.ID,
			EnrolledAt: s.now().UTC(),
		}
		if !class.HasRoom() {
			waiting, err := tx.CountWaitlisted(ctx, class.ID)
			if err != nil {
				return internal(err, "failed to count waitlist")
			}
			position := waiting + 1
			enrollment.Status = models.EnrollmentStatusPending
			enrollment.IsWaitlisted = true
			enrollment.WaitlistPosition = &position
			outcome = OutcomeWaitlisted
			if err := tx.InsertEnrollment(ctx, &enrollment); err != nil {
				return enrollmentWriteError(err)
			}
			return nil
		}

		enrollment.Status = models.EnrollmentStatusActive
		outcome = OutcomeSeated
		if err := tx.InsertEnrollment(ctx, &enrollment); err != nil {
			return enrollmentWriteError(err)
		}
		return s.takeSeat(ctx, tx, class, &enrollment)
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.afterMutation(ctx, outcome, outcome == OutcomeSeated)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("class_id", enrollment.ClassID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("outcome", outcome))
	return s.Get(ctx, enrollment.ID)
}

// Delete drops an enrollment. Freeing a seat promotes the head of the
// waitlist when the class has room for it.
func (s *EnrollmentService) Delete(ctx context.Context, actor *models.JWTClaims, id string) (*DropResult, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	result := &DropResult{}
	err := s.withLockedEnrollment(ctx, id, func(tx repository.EnrollmentTx, class *models.Class, enrollment *models.Enrollment) error {
		if actor.Role != models.RoleAdmin && actor.UserID != enrollment.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		if err := tx.DeleteEnrollment(ctx, enrollment.ID); err != nil {
			return internal(err, "failed to delete enrollment")
		}
		result.Removed = *enrollment

		if enrollment.IsWaitlisted {
			if enrollment.WaitlistPosition != nil {
				if err := tx.ShiftWaitlistAfter(ctx, class.ID, *enrollment.WaitlistPosition); err != nil {
					return internal(err, "failed to reorder waitlist")
				}
			}
			return nil
		}
		if !enrollment.Seated() {
			return nil
		}

		class.CurrentEnrollment--
		if class.CurrentEnrollment < 0 {
			class.CurrentEnrollment = 0
		}
		promoted, err := s.promoteNext(ctx, tx, class)
		if err != nil {
			return err
		}
		result.Promoted = promoted
		return tx.UpdateClassOccupancy(ctx, class.ID, class.CurrentEnrollment, occupancyStatus(class))
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.afterMutation(ctx, OutcomeDropped, result.Promoted != nil)
	if result.Promoted != nil {
		s.metrics.RecordEnrollment(OutcomePromoted)
		s.logger.Info("waitlisted enrollment promoted",
			zap.String("enrollment_id", result.Promoted.ID),
			zap.String("class_id", result.Promoted.ClassID),
			zap.String("student_id", result.Promoted.StudentID))
	}
	return result, nil
}

// Approve activates a pending enrollment. A waitlisted enrollment takes a
// seat only while the class has room.
func (s *EnrollmentService) Approve(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) (*models.EnrollmentDetail, error) {
	seated := false
	err := s.withLockedEnrollment(ctx, id, func(tx repository.EnrollmentTx, class *models.Class, enrollment *models.Enrollment) error {
		if enrollment.Status != models.EnrollmentStatusPending {
			return appErrors.Clone(appErrors.ErrConflict, "only pending enrollments can be approved")
		}
		if enrollment.IsWaitlisted && !class.HasRoom() {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, "class is at full capacity")
		}

		now := s.now().UTC()
		enrollment.Status = models.EnrollmentStatusActive
		enrollment.ApprovedAt = &now
		enrollment.ApprovedBy = actorID(actor)
		if !enrollment.IsWaitlisted {
			return s.updateEnrollment(ctx, tx, enrollment)
		}

		position := enrollment.WaitlistPosition
		enrollment.IsWaitlisted = false
		enrollment.WaitlistPosition = nil
		if err := s.updateEnrollment(ctx, tx, enrollment); err != nil {
			return err
		}
		if position != nil {
			if err := tx.ShiftWaitlistAfter(ctx, class.ID, *position); err != nil {
				return internal(err, "failed to reorder waitlist")
			}
		}
		seated = true
		return s.takeSeat(ctx, tx, class, enrollment)
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.afterMutation(ctx, OutcomeApproved, seated)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentApprove, "enrollments", id,
		map[string]string{"status": string(models.EnrollmentStatusPending)},
		map[string]interface{}{"status": models.EnrollmentStatusActive, "seated": seated}, meta)
	return s.Get(ctx, id)
}

// Reject closes a pending enrollment and its waitlist slot.
func (s *EnrollmentService) Reject(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) (*models.EnrollmentDetail, error) {
	err := s.withLockedEnrollment(ctx, id, func(tx repository.EnrollmentTx, class *models.Class, enrollment *models.Enrollment) error {
		if enrollment.Status != models.EnrollmentStatusPending {
			return appErrors.Clone(appErrors.ErrConflict, "only pending enrollments can be rejected")
		}
		now := s.now().UTC()
		position := enrollment.WaitlistPosition
		wasWaitlisted := enrollment.IsWaitlisted

		enrollment.Status = models.EnrollmentStatusRejected
		enrollment.ApprovedAt = &now
		enrollment.ApprovedBy = actorID(actor)
		enrollment.IsWaitlisted = false
		enrollment.WaitlistPosition = nil
		if err := s.updateEnrollment(ctx, tx, enrollment); err != nil {
			return err
		}
		if wasWaitlisted && position != nil {
			if err := tx.ShiftWaitlistAfter(ctx, class.ID, *position); err != nil {
				return internal(err, "failed to reorder waitlist")
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.afterMutation(ctx, OutcomeRejected, false)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentReject, "enrollments", id,
		map[string]string{"status": string(models.EnrollmentStatusPending)},
		map[string]string{"status": string(models.EnrollmentStatusRejected)}, meta)
	return s.Get(ctx, id)
}

// withLockedEnrollment locks the enrollment's class and then the enrollment
// row before running fn inside one transaction.
func (s *EnrollmentService) withLockedEnrollment(ctx context.Context, id string, fn func(tx repository.EnrollmentTx, class *models.Class, enrollment *models.Enrollment) error) error {
	return s.store.RunInTx(ctx, func(tx repository.EnrollmentTx) error {
		found, err := tx.FindEnrollment(ctx, id)
		if err != nil {
			return notFoundOr(err, "enrollment not found", "failed to load enrollment")
		}
		class, err := tx.LockClass(ctx, found.ClassID)
		if err != nil {
			return notFoundOr(err, "class not found", "failed to lock class")
		}
		enrollment, err := tx.LockEnrollment(ctx, id)
		if err != nil {
			return notFoundOr(err, "enrollment not found", "failed to lock enrollment")
		}
		return fn(tx, class, enrollment)
	})
}

// takeSeat counts enrollment against the class and charges its payment.
func (s *EnrollmentService) takeSeat(ctx context.Context, tx repository.EnrollmentTx, class *models.Class, enrollment *models.Enrollment) error {
	class.CurrentEnrollment++
	if err := tx.UpdateClassOccupancy(ctx, class.ID, class.CurrentEnrollment, occupancyStatus(class)); err != nil {
		return internal(err, "failed to update class occupancy")
	}
	payment := NewEnrollmentPayment(*class, enrollment.StudentID, enrollment.ID, s.now())
	if err := tx.InsertPayment(ctx, &payment); err != nil {
		return internal(err, "failed to create enrollment payment")
	}
	return nil
}

// promoteNext seats the lowest positioned waitlisted enrollment when the
// class has room. The class counter is updated in memory only.
func (s *EnrollmentService) promoteNext(ctx context.Context, tx repository.EnrollmentTx, class *models.Class) (*models.Enrollment, error) {
	if class.Status == models.ClassStatusInactive || !class.HasRoom() {
		return nil, nil
	}
	next, err := tx.NextWaitlisted(ctx, class.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internal(err, "failed to load waitlist")
	}

	position := next.WaitlistPosition
	next.IsWaitlisted = false
	next.WaitlistPosition = nil
	next.Status = models.EnrollmentStatusActive
	if err := s.updateEnrollment(ctx, tx, next); err != nil {
		return nil, err
	}
	if position != nil {
		if err := tx.ShiftWaitlistAfter(ctx, class.ID, *position); err != nil {
			return nil, internal(err, "failed to reorder waitlist")
		}
	}

	class.CurrentEnrollment++
	payment := NewEnrollmentPayment(*class, next.StudentID, next.ID, s.now())
	if err := tx.InsertPayment(ctx, &payment); err != nil {
		return nil, internal(err, "failed to create enrollment payment")
	}
	return next, nil
}

func (s *EnrollmentService) updateEnrollment(ctx context.Context, tx repository.EnrollmentTx, enrollment *models.Enrollment) error {
	if err := tx.UpdateEnrollment(ctx, enrollment); err != nil {
		return enrollmentWriteError(err)
	}
	return nil
}

// afterMutation drops cached class listings and, when a payment was created,
// the payment summary.
func (s *EnrollmentService) afterMutation(ctx context.Context, outcome string, charged bool) {
	s.metrics.RecordEnrollment(outcome)
	s.cache.Invalidate(ctx, cacheKeyClassesPrefix+"*")
	if charged {
		s.metrics.RecordPaymentCreated("enrollment")
		s.cache.Invalidate(ctx, cacheKeyPaymentsSummary+"*")
	}
}

// occupancyStatus derives the class status from its counter. Inactive is
// sticky.
func occupancyStatus(class *models.Class) models.ClassStatus {
	switch {
	case class.Status == models.ClassStatusInactive:
		return models.ClassStatusInactive
	case class.CurrentEnrollment >= class.Capacity:
		return models.ClassStatusFull
	default:
		return models.ClassStatusActive
	}
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func notFoundOr(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internal(err, failure)
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// enrollmentWriteError maps the open enrollment unique index to a conflict.
func enrollmentWriteError(err error) error {
	if appErrors.IsUniqueViolation(err) {
		return appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment for this class")
	}
	return internal(err, "failed to save enrollment")
}
