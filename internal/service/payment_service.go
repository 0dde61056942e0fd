package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/export"
	"github.com/noah-isme/dance-studio-api/pkg/jobs"
	"github.com/noah-isme/dance-studio-api/pkg/signedurl"
)

// DefaultPaymentAmount is charged when a class has no price set.
const DefaultPaymentAmount = 100.0

// JobTypeOverdueSweep identifies the recurring overdue sweep job.
const JobTypeOverdueSweep = "payments.overdue_sweep"

const summaryMonths = 12

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	StatusTotals(ctx context.Context) ([]models.PaymentStatusTotal, error)
	MonthlyPaidTotals(ctx context.Context, since time.Time) ([]models.PaymentMonthTotal, error)
	MarkOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// PaymentConfig tunes payment side features.
type PaymentConfig struct {
	StudioName string
	SummaryTTL time.Duration
	// ReceiptPath is the public route prefix serving signed receipts.
	ReceiptPath string
}

// NewEnrollmentPayment builds the charge created when a student takes a seat.
// The due date is the 5th of the month after now; the label names the month
// of now.
func NewEnrollmentPayment(class models.Class, studentID, enrollmentID string, now time.Time) models.Payment {
	now = now.UTC()
	amount := class.Price
	if amount <= 0 {
		amount = DefaultPaymentAmount
	}
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	due := firstOfMonth.AddDate(0, 1, 4)
	payment := models.Payment{
		StudentID: studentID,
		ClassID:   class.ID,
		Amount:    amount,
		Month:     now.Format("January 2006"),
		DueDate:   due,
		Status:    models.PaymentStatusPending,
	}
	if enrollmentID != "" {
		id := enrollmentID
		payment.EnrollmentID = &id
	}
	return payment
}

// BuildPaymentSummary folds grouped status rows and monthly paid totals into
// the dashboard summary. The revenue series always holds the twelve months
// ending with the month of now, zero filled.
func BuildPaymentSummary(totals []models.PaymentStatusTotal, monthly []models.PaymentMonthTotal, now time.Time) models.PaymentSummary {
	var summary models.PaymentSummary
	for _, row := range totals {
		agg := models.PaymentAggregate{Amount: row.Amount, Count: row.Count}
		switch row.Status {
		case models.PaymentStatusPaid:
			summary.Paid = agg
		case models.PaymentStatusPending:
			summary.Pending = agg
		case models.PaymentStatusOverdue:
			summary.Overdue = agg
		case models.PaymentStatusCancelled:
			summary.Cancelled = agg
		}
		summary.Total.Amount += row.Amount
		summary.Total.Count += row.Count
	}
	summary.Outstanding = models.PaymentAggregate{
		Amount: summary.Pending.Amount + summary.Overdue.Amount,
		Count:  summary.Pending.Count + summary.Overdue.Count,
	}

	byMonth := make(map[[2]int]models.PaymentMonthTotal, len(monthly))
	for _, row := range monthly {
		byMonth[[2]int{row.Year, row.Month}] = row
	}
	start := summaryWindowStart(now)
	summary.MonthlyRevenue = make([]models.MonthlyRevenue, 0, summaryMonths)
	for i := 0; i < summaryMonths; i++ {
		month := start.AddDate(0, i, 0)
		row := byMonth[[2]int{month.Year(), int(month.Month())}]
		summary.MonthlyRevenue = append(summary.MonthlyRevenue, models.MonthlyRevenue{
			Year:   month.Year(),
			Month:  int(month.Month()),
			Label:  month.Format("Jan 2006"),
			Amount: row.Amount,
			Count:  row.Count,
		})
	}
	summary.GeneratedAt = now.UTC()
	return summary
}

func summaryWindowStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(summaryMonths - 1), 0)
}

// PaymentService manages tuition charges.
type PaymentService struct {
	repo      paymentRepository
	classes   classReader
	users     userReader
	audit     auditWriter
	cache     *CacheService
	metrics   *MetricsService
	signer    *signedurl.Signer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PaymentConfig
	now       func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, classes classReader, users userReader, audit auditWriter, cache *CacheService, metrics *MetricsService, signer *signedurl.Signer, validate *validator.Validate, logger *zap.Logger, cfg PaymentConfig) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StudioName == "" {
		cfg.StudioName = "Dance Studio"
	}
	if cfg.ReceiptPath == "" {
		cfg.ReceiptPath = "/receipts"
	}
	return &PaymentService{
		repo:      repo,
		classes:   classes,
		users:     users,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListByStudent returns the payments of one student.
func (s *PaymentService) ListByStudent(ctx context.Context, studentID string, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	return s.List(ctx, filter)
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	payment, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// Create registers a manual charge.
func (s *PaymentService) Create(ctx context.Context, req models.CreatePaymentRequest) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payments can only be charged to students")
	}

	payment := &models.Payment{
		StudentID: req.StudentID,
		ClassID:   req.ClassID,
		Amount:    req.Amount,
		Month:     strings.TrimSpace(req.Month),
		DueDate:   req.DueDate.UTC(),
		Status:    models.PaymentStatusPending,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	s.metrics.RecordPaymentCreated("manual")
	s.invalidateSummary(ctx)
	return s.Get(ctx, payment.ID)
}

// Update applies settlement changes. Marking a payment paid without a paid
// date stamps the current time.
func (s *PaymentService) Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdatePaymentRequest, meta models.RequestMeta) (*models.PaymentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := current.Payment
	payment := current.Payment

	if req.Status != nil {
		payment.Status = *req.Status
	}
	if req.PaidDate != nil {
		paid := req.PaidDate.UTC()
		payment.PaidDate = &paid
	}
	if payment.Status == models.PaymentStatusPaid && payment.PaidDate == nil {
		paid := s.now().UTC()
		payment.PaidDate = &paid
	}
	if req.PaymentMethod != nil {
		payment.PaymentMethod = strings.TrimSpace(*req.PaymentMethod)
	}
	if req.TransactionID != nil {
		payment.TransactionID = strings.TrimSpace(*req.TransactionID)
	}
	if req.Notes != nil {
		payment.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, &payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	s.invalidateSummary(ctx)
	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionPaymentUpdate, "payments", id,
		map[string]interface{}{"status": previous.Status, "paid_date": previous.PaidDate},
		map[string]interface{}{"status": payment.Status, "paid_date": payment.PaidDate}, meta)

	current.Payment = payment
	return current, nil
}

// Summary returns the cached or freshly aggregated dashboard summary and
// whether it came from cache.
func (s *PaymentService) Summary(ctx context.Context) (*models.PaymentSummary, bool, error) {
	var cached models.PaymentSummary
	if s.cache.Get(ctx, cacheKeyPaymentsSummary, &cached) {
		return &cached, true, nil
	}

	now := s.now()
	totals, err := s.repo.StatusTotals(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate payments")
	}
	monthly, err := s.repo.MonthlyPaidTotals(ctx, summaryWindowStart(now))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate monthly revenue")
	}
	summary := BuildPaymentSummary(totals, monthly, now)
	s.cache.Set(ctx, cacheKeyPaymentsSummary, &summary, s.cfg.SummaryTTL)
	return &summary, false, nil
}

// SweepOverdue moves pending payments due before today to overdue.
func (s *PaymentService) SweepOverdue(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	affected, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("mark overdue payments: %w", err)
	}
	if affected > 0 {
		s.invalidateSummary(ctx)
		s.metrics.RecordOverdue(affected)
		s.logger.Info("payments marked overdue", zap.Int64("count", affected))
	}
	return affected, nil
}

// OverdueSweepHandler adapts SweepOverdue to the job queue.
func (s *PaymentService) OverdueSweepHandler() jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		_, err := s.SweepOverdue(ctx)
		return err
	}
}

// Receipt renders the PDF receipt of a paid payment the actor may see.
func (s *PaymentService) Receipt(ctx context.Context, actor *models.JWTClaims, id string) ([]byte, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePaymentOwner(actor, payment); err != nil {
		return nil, err
	}
	return s.renderReceipt(payment)
}

// ReceiptLink returns a signed expiring URL for a paid payment's receipt.
func (s *PaymentService) ReceiptLink(ctx context.Context, actor *models.JWTClaims, id string) (*models.ReceiptLink, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePaymentOwner(actor, payment); err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipts are only available for paid payments")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "receipt links are not configured")
	}
	token, expiresAt, err := s.signer.Sign(payment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &models.ReceiptLink{URL: strings.TrimSuffix(s.cfg.ReceiptPath, "/") + "/" + token, ExpiresAt: expiresAt}, nil
}

// ReceiptByToken renders the receipt named by a signed token.
func (s *PaymentService) ReceiptByToken(ctx context.Context, token string) ([]byte, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
	}
	id, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, signedurl.ErrExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "receipt link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid receipt link")
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderReceipt(payment)
}

// Export renders the filtered payments as CSV or XLSX.
func (s *PaymentService) Export(ctx context.Context, filter models.PaymentFilter, format export.Format) ([]byte, error) {
	payments, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	data := export.Dataset{
		Title:   "Payments",
		Headers: []string{"id", "student", "email", "class", "month", "amount", "status", "due_date", "paid_date", "method", "transaction_id"},
		Rows:    make([][]string, 0, len(payments)),
	}
	for _, p := range payments {
		data.Rows = append(data.Rows, []string{
			p.ID,
			deref(p.StudentName),
			deref(p.StudentEmail),
			deref(p.ClassName),
			p.Month,
			fmt.Sprintf("%.2f", p.Amount),
			string(p.Status),
			p.DueDate.UTC().Format("2006-01-02"),
			formatOptionalDate(p.PaidDate),
			p.PaymentMethod,
			p.TransactionID,
		})
	}
	out, err := export.ForFormat(format).Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return out, nil
}

func (s *PaymentService) renderReceipt(payment *models.PaymentDetail) ([]byte, error) {
	if payment.Status != models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receipts are only available for paid payments")
	}
	receipt := export.Receipt{
		StudioName:    s.cfg.StudioName,
		ReceiptNumber: payment.ID,
		StudentName:   deref(payment.StudentName),
		StudentEmail:  deref(payment.StudentEmail),
		ClassName:     deref(payment.ClassName),
		Month:         payment.Month,
		Amount:        payment.Amount,
		PaymentMethod: payment.PaymentMethod,
		TransactionID: payment.TransactionID,
		IssuedAt:      s.now(),
	}
	if payment.PaidDate != nil {
		receipt.PaidDate = *payment.PaidDate
	}
	out, err := export.RenderReceipt(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return out, nil
}

func (s *PaymentService) invalidateSummary(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheKeyPaymentsSummary+"*")
}

func authorizePaymentOwner(actor *models.JWTClaims, payment *models.PaymentDetail) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if actor.Role == models.RoleAdmin || actor.UserID == payment.StudentID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
