package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/middleware"
	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/internal/service"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	ListByStudent(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	ListByClass(ctx context.Context, classID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Create(ctx context.Context, actor *models.JWTClaims, req models.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) (*service.DropResult, error)
	Approve(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) (*models.EnrollmentDetail, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) (*models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes the enrollment and waitlist lifecycle.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param status query string false "Pending, Active, Completed, Dropped or Rejected"
// @Param waitlisted query bool false "Only waitlisted rows"
// @Param student_id query string false "Student ID"
// @Param class_id query string false "Class ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter, ok := enrollmentFilter(c)
	if !ok {
		return
	}
	filter.StudentID = c.Query("student_id")
	filter.ClassID = c.Query("class_id")
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByStudent godoc
// @Summary List a student's enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/student/{id} [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	filter, ok := enrollmentFilter(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByClass godoc
// @Summary List a class roster and waitlist
// @Tags Enrollments
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/class/{id} [get]
func (h *EnrollmentHandler) ListByClass(c *gin.Context) {
	filter, ok := enrollmentFilter(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListByClass(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Enroll in a class
// @Description Seats the student when capacity allows, otherwise appends them to the waitlist
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body models.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateEnrollmentRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	created, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Delete godoc
// @Summary Drop an enrollment
// @Description Frees the seat and promotes the head of the waitlist
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	result, err := h.service.Delete(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Approve godoc
// @Summary Approve an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/approve [put]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/reject [put]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

type reviewFunc func(ctx context.Context, actor *models.JWTClaims, id string, meta models.RequestMeta) (*models.EnrollmentDetail, error)

func (h *EnrollmentHandler) review(c *gin.Context, fn reviewFunc) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	enrollment, err := fn(c.Request.Context(), claims, c.Param("id"), middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func enrollmentFilter(c *gin.Context) (models.EnrollmentFilter, bool) {
	var filter models.EnrollmentFilter
	waitlisted, err := boolQuery(c, "waitlisted")
	if err != nil {
		response.Error(c, err)
		return filter, false
	}
	filter.IsWaitlisted = waitlisted
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter, true
}
