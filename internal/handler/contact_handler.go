package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/models"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

type contactService interface {
	Submit(ctx context.Context, req models.ContactRequest) (*models.Contact, error)
	List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Contact, error)
	UpdateStatus(ctx context.Context, id string, req models.UpdateContactStatusRequest) (*models.Contact, error)
	Delete(ctx context.Context, id string) error
}

// ContactHandler serves the public contact form and the admin inbox.
type ContactHandler struct {
	service contactService
}

// NewContactHandler constructs ContactHandler.
func NewContactHandler(svc contactService) *ContactHandler {
	return &ContactHandler{service: svc}
}

// Submit godoc
// @Summary Send a contact message
// @Tags Contacts
// @Accept json
// @Produce json
// @Param payload body models.ContactRequest true "Contact payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /contacts [post]
func (h *ContactHandler) Submit(c *gin.Context) {
	var req models.ContactRequest
	if !bindJSON(c, &req, "invalid contact payload") {
		return
	}
	if _, err := h.service.Submit(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "thanks, we will get back to you soon"})
}

// List godoc
// @Summary List contact messages
// @Tags Contacts
// @Produce json
// @Param status query string false "New, Read, Replied or Archived"
// @Param search query string false "Keyword"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	var filter models.ContactFilter
	filter.Status = models.ContactStatus(c.Query("status"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a contact message
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /contacts/{id} [get]
func (h *ContactHandler) Get(c *gin.Context) {
	contact, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contact, nil)
}

// UpdateStatus godoc
// @Summary Move a message through the inbox
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param payload body models.UpdateContactStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /contacts/{id} [put]
func (h *ContactHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateContactStatusRequest
	if !bindJSON(c, &req, "invalid contact status payload") {
		return
	}
	contact, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contact, nil)
}

// Delete godoc
// @Summary Delete a contact message
// @Tags Contacts
// @Param id path string true "Contact ID"
// @Success 204
// @Security BearerAuth
// @Router /contacts/{id} [delete]
func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
