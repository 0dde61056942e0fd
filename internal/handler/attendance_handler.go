package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/pkg/export"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, actor *models.JWTClaims, req models.MarkAttendanceRequest) (*models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error)
	ListByStudent(ctx context.Context, studentID string, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error)
	StudentSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
	Export(ctx context.Context, actor *models.JWTClaims, filter models.AttendanceFilter, format export.Format) ([]byte, error)
}

// AttendanceHandler exposes attendance marking and reporting.
type AttendanceHandler struct {
	service attendanceService
	now     func() time.Time
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc, now: time.Now}
}

// Mark godoc
// @Summary Mark attendance
// @Description Marking the same student, class and day again replaces the status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.service.Mark(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance
// @Tags Attendance
// @Produce json
// @Param class_id query string false "Class ID"
// @Param student_id query string false "Student ID"
// @Param status query string false "Present, Absent or Late"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	filter.StudentID = c.Query("student_id")
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListByStudent godoc
// @Summary Attendance of a student
// @Description Marks of the student with their per status summary in meta
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/student/{id} [get]
func (h *AttendanceHandler) ListByStudent(c *gin.Context) {
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	studentID := c.Param("id")
	items, pagination, err := h.service.ListByStudent(c.Request.Context(), studentID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.StudentSummary(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, map[string]interface{}{"summary": summary})
}

// Export godoc
// @Summary Export attendance
// @Tags Attendance
// @Produce text/csv
// @Param format query string false "csv or xlsx"
// @Param class_id query string false "Class ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	format, ok := exportFormat(c)
	if !ok {
		return
	}
	filter, ok := attendanceFilter(c)
	if !ok {
		return
	}
	filter.StudentID = c.Query("student_id")
	body, err := h.service.Export(c.Request.Context(), claims, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, exportFilename("attendance", format, h.now()), format.ContentType(), body)
}

func attendanceFilter(c *gin.Context) (models.AttendanceFilter, bool) {
	var filter models.AttendanceFilter
	from, err := dateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return filter, false
	}
	to, err := dateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return filter, false
	}
	filter.DateFrom, filter.DateTo = from, to
	filter.ClassID = c.Query("class_id")
	if status := c.Query("status"); status != "" {
		s := models.AttendanceStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter, true
}
