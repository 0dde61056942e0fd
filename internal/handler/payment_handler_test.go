package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/export"
)

type fakePaymentService struct {
	filter      models.PaymentFilter
	format      export.Format
	summaryHit  bool
	receiptErr  error
	tokenSeen   string
	updateActor *models.JWTClaims
}

func (f *fakePaymentService) List(_ context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.PaymentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakePaymentService) ListByStudent(_ context.Context, studentID string, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	filter.StudentID = studentID
	f.filter = filter
	return []models.PaymentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakePaymentService) Create(_ context.Context, req models.CreatePaymentRequest) (*models.PaymentDetail, error) {
	return &models.PaymentDetail{Payment: models.Payment{ID: "p1", StudentID: req.StudentID, Amount: req.Amount}}, nil
}

func (f *fakePaymentService) Update(_ context.Context, actor *models.JWTClaims, id string, _ models.UpdatePaymentRequest, _ models.RequestMeta) (*models.PaymentDetail, error) {
	f.updateActor = actor
	return &models.PaymentDetail{Payment: models.Payment{ID: id, Status: models.PaymentStatusPaid}}, nil
}

func (f *fakePaymentService) Summary(context.Context) (*models.PaymentSummary, bool, error) {
	return &models.PaymentSummary{Outstanding: models.PaymentAggregate{Amount: 120, Count: 2}}, f.summaryHit, nil
}

func (f *fakePaymentService) Export(_ context.Context, filter models.PaymentFilter, format export.Format) ([]byte, error) {
	f.filter, f.format = filter, format
	return []byte("id,student\n"), nil
}

func (f *fakePaymentService) Receipt(_ context.Context, _ *models.JWTClaims, _ string) ([]byte, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return []byte("%PDF-1.3"), nil
}

func (f *fakePaymentService) ReceiptLink(_ context.Context, _ *models.JWTClaims, id string) (*models.ReceiptLink, error) {
	return &models.ReceiptLink{URL: "/receipts/signed-" + id, ExpiresAt: time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)}, nil
}

func (f *fakePaymentService) ReceiptByToken(_ context.Context, token string) ([]byte, error) {
	f.tokenSeen = token
	if token == "expired" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "receipt link expired")
	}
	return []byte("%PDF-1.3"), nil
}

func newTestPaymentHandler(svc *fakePaymentService) *PaymentHandler {
	h := NewPaymentHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
	return h
}

func TestPaymentHandlerSummaryMeta(t *testing.T) {
	svc := &fakePaymentService{summaryHit: true}
	h := newTestPaymentHandler(svc)

	rec := serve(t, h.Summary, http.MethodGet, "/payments/summary", "/payments/summary", nil, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.PaymentSummary
	env := decodeData(t, rec, &summary)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, 120.0, summary.Outstanding.Amount)
}

func TestPaymentHandlerExport(t *testing.T) {
	svc := &fakePaymentService{}
	h := newTestPaymentHandler(svc)

	rec := serve(t, h.Export, http.MethodGet, "/payments/export", "/payments/export?format=xlsx&status=Overdue&month=March+2024", nil, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatXLSX, svc.format)
	assert.Equal(t, models.PaymentStatusOverdue, svc.filter.Status)
	assert.Equal(t, "March 2024", svc.filter.Month)
	assert.Equal(t, export.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="payments-20240315.xlsx"`, rec.Header().Get("Content-Disposition"))

	rec = serve(t, h.Export, http.MethodGet, "/payments/export", "/payments/export?format=pdf", nil, adminClaims)
	assertCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestPaymentHandlerReceipts(t *testing.T) {
	svc := &fakePaymentService{}
	h := newTestPaymentHandler(svc)

	rec := serve(t, h.Receipt, http.MethodGet, "/payments/:id/receipt", "/payments/p1/receipt", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pdfContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="receipt-p1.pdf"`, rec.Header().Get("Content-Disposition"))

	svc.receiptErr = appErrors.Clone(appErrors.ErrForbidden, "not your payment")
	rec = serve(t, h.Receipt, http.MethodGet, "/payments/:id/receipt", "/payments/p1/receipt", nil, studentClaims)
	assertCode(t, rec, http.StatusForbidden, appErrors.ErrForbidden.Code)

	rec = serve(t, h.ReceiptLink, http.MethodGet, "/payments/:id/receipt-link", "/payments/p1/receipt-link", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	var link models.ReceiptLink
	decodeData(t, rec, &link)
	assert.Equal(t, "/receipts/signed-p1", link.URL)

	rec = serve(t, h.SignedReceipt, http.MethodGet, "/receipts/:token", "/receipts/abc.def", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc.def", svc.tokenSeen)

	rec = serve(t, h.SignedReceipt, http.MethodGet, "/receipts/:token", "/receipts/expired", nil, nil)
	assertCode(t, rec, http.StatusForbidden, appErrors.ErrForbidden.Code)
}

func TestPaymentHandlerListByStudentAndUpdate(t *testing.T) {
	svc := &fakePaymentService{}
	h := newTestPaymentHandler(svc)

	rec := serve(t, h.ListByStudent, http.MethodGet, "/payments/student/:id", "/payments/student/stu-1?status=Pending", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", svc.filter.StudentID)
	assert.Equal(t, models.PaymentStatusPending, svc.filter.Status)

	rec = serve(t, h.Update, http.MethodPut, "/payments/:id", "/payments/p1", map[string]string{"status": "Paid"}, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, adminClaims, svc.updateActor)
}
