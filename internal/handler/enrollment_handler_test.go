package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/internal/service"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type fakeEnrollmentService struct {
	filter    models.EnrollmentFilter
	scopeID   string
	actor     *models.JWTClaims
	createReq models.CreateEnrollmentRequest
	createErr error
	reviewed  string
}

func (f *fakeEnrollmentService) List(_ context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.EnrollmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeEnrollmentService) ListByStudent(_ context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	f.scopeID, f.filter = studentID, filter
	return []models.EnrollmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeEnrollmentService) ListByClass(_ context.Context, classID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	f.scopeID, f.filter = classID, filter
	return []models.EnrollmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeEnrollmentService) Create(_ context.Context, actor *models.JWTClaims, req models.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	f.actor, f.createReq = actor, req
	if f.createErr != nil {
		return nil, f.createErr
	}
	one := 1
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e1", ClassID: req.ClassID, StudentID: actor.UserID, Status: models.EnrollmentStatusPending, IsWaitlisted: true, WaitlistPosition: &one}}, nil
}

func (f *fakeEnrollmentService) Delete(_ context.Context, actor *models.JWTClaims, id string) (*service.DropResult, error) {
	f.actor = actor
	return &service.DropResult{
		Removed:  models.Enrollment{ID: id, Status: models.EnrollmentStatusDropped},
		Promoted: &models.Enrollment{ID: "e2", Status: models.EnrollmentStatusActive},
	}, nil
}

func (f *fakeEnrollmentService) Approve(_ context.Context, actor *models.JWTClaims, id string, _ models.RequestMeta) (*models.EnrollmentDetail, error) {
	f.reviewed = "approve:" + id
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id, Status: models.EnrollmentStatusActive}}, nil
}

func (f *fakeEnrollmentService) Reject(_ context.Context, actor *models.JWTClaims, id string, _ models.RequestMeta) (*models.EnrollmentDetail, error) {
	f.reviewed = "reject:" + id
	return nil, appErrors.Clone(appErrors.ErrConflict, "only pending enrollments can be rejected")
}

func TestEnrollmentHandlerCreateWaitlisted(t *testing.T) {
	svc := &fakeEnrollmentService{}
	h := NewEnrollmentHandler(svc)

	rec := serve(t, h.Create, http.MethodPost, "/enrollments", "/enrollments", map[string]string{"class_id": "c1"}, studentClaims)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.EnrollmentDetail
	decodeData(t, rec, &created)
	assert.True(t, created.IsWaitlisted)
	require.NotNil(t, created.WaitlistPosition)
	assert.Equal(t, 1, *created.WaitlistPosition)
	assert.Equal(t, studentClaims, svc.actor)
	assert.Equal(t, "c1", svc.createReq.ClassID)

	rec = serve(t, h.Create, http.MethodPost, "/enrollments", "/enrollments", map[string]string{"class_id": "c1"}, nil)
	assertCode(t, rec, http.StatusUnauthorized, appErrors.ErrUnauthorized.Code)

	svc.createErr = appErrors.Clone(appErrors.ErrConflict, "already enrolled in this class")
	rec = serve(t, h.Create, http.MethodPost, "/enrollments", "/enrollments", map[string]string{"class_id": "c1"}, studentClaims)
	assertCode(t, rec, http.StatusConflict, appErrors.ErrConflict.Code)
}

func TestEnrollmentHandlerDeleteReturnsPromotion(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollmentService{})

	rec := serve(t, h.Delete, http.MethodDelete, "/enrollments/:id", "/enrollments/e1", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	var result service.DropResult
	decodeData(t, rec, &result)
	assert.Equal(t, "e1", result.Removed.ID)
	require.NotNil(t, result.Promoted)
	assert.Equal(t, "e2", result.Promoted.ID)
}

func TestEnrollmentHandlerReview(t *testing.T) {
	svc := &fakeEnrollmentService{}
	h := NewEnrollmentHandler(svc)

	rec := serve(t, h.Approve, http.MethodPut, "/enrollments/:id/approve", "/enrollments/e3/approve", nil, adminClaims)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approve:e3", svc.reviewed)

	rec = serve(t, h.Reject, http.MethodPut, "/enrollments/:id/reject", "/enrollments/e4/reject", nil, adminClaims)
	assertCode(t, rec, http.StatusConflict, appErrors.ErrConflict.Code)
	assert.Equal(t, "reject:e4", svc.reviewed)
}

func TestEnrollmentHandlerScopedLists(t *testing.T) {
	svc := &fakeEnrollmentService{}
	h := NewEnrollmentHandler(svc)

	rec := serve(t, h.ListByClass, http.MethodGet, "/enrollments/class/:id", "/enrollments/class/c1?waitlisted=true&status=Pending", nil, instructorClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", svc.scopeID)
	require.NotNil(t, svc.filter.IsWaitlisted)
	assert.True(t, *svc.filter.IsWaitlisted)
	assert.Equal(t, models.EnrollmentStatusPending, svc.filter.Status)

	rec = serve(t, h.ListByStudent, http.MethodGet, "/enrollments/student/:id", "/enrollments/student/stu-1", nil, studentClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", svc.scopeID)

	rec = serve(t, h.List, http.MethodGet, "/enrollments", "/enrollments?waitlisted=perhaps", nil, adminClaims)
	assertCode(t, rec, http.StatusBadRequest, appErrors.ErrValidation.Code)
}
