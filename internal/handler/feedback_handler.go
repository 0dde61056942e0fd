package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

type feedbackService interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req models.SubmitFeedbackRequest) (*models.FeedbackDetail, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req models.UpdateFeedbackRequest) (*models.FeedbackDetail, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
	Get(ctx context.Context, id string) (*models.FeedbackDetail, error)
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error)
	ListByClass(ctx context.Context, classID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, float64, error)
	ListByStudent(ctx context.Context, studentID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error)
	ListByInstructor(ctx context.Context, instructorID string, filter models.FeedbackFilter) ([]models.FeedbackDetail, *models.Pagination, error)
}

// FeedbackHandler exposes class ratings.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs FeedbackHandler.
func NewFeedbackHandler(svc feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Rate a class
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body models.SubmitFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.SubmitFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}
	created, err := h.service.Submit(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Edit feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Feedback ID"
// @Param payload body models.UpdateFeedbackRequest true "Feedback payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id} [put]
func (h *FeedbackHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateFeedbackRequest
	if !bindJSON(c, &req, "invalid feedback payload") {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Delete godoc
// @Summary Delete feedback
// @Tags Feedback
// @Param id path string true "Feedback ID"
// @Success 204
// @Security BearerAuth
// @Router /feedback/{id} [delete]
func (h *FeedbackHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get feedback
// @Tags Feedback
// @Produce json
// @Param id path string true "Feedback ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/{id} [get]
func (h *FeedbackHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// List godoc
// @Summary List feedback
// @Tags Feedback
// @Produce json
// @Param class_id query string false "Class ID"
// @Param min_rating query int false "Minimum rating"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	filter := feedbackFilter(c)
	filter.ClassID = c.Query("class_id")
	filter.StudentID = c.Query("student_id")
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByClass godoc
// @Summary Feedback of a class
// @Description Includes the class average rating in meta
// @Tags Feedback
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/class/{id} [get]
func (h *FeedbackHandler) ListByClass(c *gin.Context) {
	items, pagination, avg, err := h.service.ListByClass(c.Request.Context(), c.Param("id"), feedbackFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, map[string]interface{}{"average_rating": avg})
}

// ListByStudent godoc
// @Summary Feedback written by a student
// @Tags Feedback
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/student/{id} [get]
func (h *FeedbackHandler) ListByStudent(c *gin.Context) {
	items, pagination, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), feedbackFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByInstructor godoc
// @Summary Feedback on an instructor's classes
// @Tags Feedback
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /feedback/instructor/{id} [get]
func (h *FeedbackHandler) ListByInstructor(c *gin.Context) {
	items, pagination, err := h.service.ListByInstructor(c.Request.Context(), c.Param("id"), feedbackFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

func feedbackFilter(c *gin.Context) models.FeedbackFilter {
	var filter models.FeedbackFilter
	filter.MinRating, _ = strconv.Atoi(c.Query("min_rating"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
