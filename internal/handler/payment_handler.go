package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/middleware"
	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/pkg/export"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

const pdfContentType = "application/pdf"

type paymentService interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error)
	ListByStudent(ctx context.Context, studentID string, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error)
	Create(ctx context.Context, req models.CreatePaymentRequest) (*models.PaymentDetail, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdatePaymentRequest, meta models.RequestMeta) (*models.PaymentDetail, error)
	Summary(ctx context.Context) (*models.PaymentSummary, bool, error)
	Export(ctx context.Context, filter models.PaymentFilter, format export.Format) ([]byte, error)
	Receipt(ctx context.Context, actor *models.JWTClaims, id string) ([]byte, error)
	ReceiptLink(ctx context.Context, actor *models.JWTClaims, id string) (*models.ReceiptLink, error)
	ReceiptByToken(ctx context.Context, token string) ([]byte, error)
}

// PaymentHandler exposes payments, the revenue summary and receipts.
type PaymentHandler struct {
	service paymentService
	now     func() time.Time
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc, now: time.Now}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param status query string false "Pending, Paid, Overdue or Cancelled"
// @Param student_id query string false "Student ID"
// @Param class_id query string false "Class ID"
// @Param month query string false "Month label, for example March 2024"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter := paymentFilter(c)
	filter.StudentID = c.Query("student_id")
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByStudent godoc
// @Summary List a student's payments
// @Tags Payments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/student/{id} [get]
func (h *PaymentHandler) ListByStudent(c *gin.Context) {
	items, pagination, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), paymentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Summary godoc
// @Summary Revenue summary
// @Description Totals per status and paid revenue of the trailing twelve months
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/summary [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
	summary, hit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export payments
// @Tags Payments
// @Produce text/csv
// @Param format query string false "csv or xlsx"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	filter := paymentFilter(c)
	filter.StudentID = c.Query("student_id")
	body, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, exportFilename("payments", format, h.now()), format.ContentType(), body)
}

// Create godoc
// @Summary Record a manual charge
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req models.CreatePaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update a payment
// @Description Marking a payment Paid without a paid date stamps the current time
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body models.UpdatePaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id} [put]
func (h *PaymentHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdatePaymentRequest
	if !bindJSON(c, &req, "invalid payment payload") {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Receipt godoc
// @Summary Download a receipt
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	body, err := h.service.Receipt(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, receiptFilename(c.Param("id")), pdfContentType, body)
}

// ReceiptLink godoc
// @Summary Create a signed receipt link
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id}/receipt-link [get]
func (h *PaymentHandler) ReceiptLink(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	link, err := h.service.ReceiptLink(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// SignedReceipt godoc
// @Summary Download a receipt through a signed link
// @Tags Payments
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /receipts/{token} [get]
func (h *PaymentHandler) SignedReceipt(c *gin.Context) {
	body, err := h.service.ReceiptByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, "receipt.pdf", pdfContentType, body)
}

func paymentFilter(c *gin.Context) models.PaymentFilter {
	var filter models.PaymentFilter
	filter.Status = models.PaymentStatus(c.Query("status"))
	filter.ClassID = c.Query("class_id")
	filter.Month = c.Query("month")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

func receiptFilename(id string) string {
	return fmt.Sprintf("receipt-%s.pdf", id)
}
