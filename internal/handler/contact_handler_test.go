package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type fakeContactService struct {
	seen   map[string]bool
	filter models.ContactFilter
	status models.ContactStatus
}

func (f *fakeContactService) Submit(_ context.Context, req models.ContactRequest) (*models.Contact, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[req.Message] {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this message was already sent")
	}
	f.seen[req.Message] = true
	return &models.Contact{ID: "m1", Email: req.Email, Status: models.ContactStatusNew}, nil
}

func (f *fakeContactService) List(_ context.Context, filter models.ContactFilter) ([]models.Contact, *models.Pagination, error) {
	f.filter = filter
	return []models.Contact{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeContactService) Get(_ context.Context, id string) (*models.Contact, error) {
	return &models.Contact{ID: id}, nil
}

func (f *fakeContactService) UpdateStatus(_ context.Context, id string, req models.UpdateContactStatusRequest) (*models.Contact, error) {
	f.status = req.Status
	return &models.Contact{ID: id, Status: req.Status}, nil
}

func (f *fakeContactService) Delete(context.Context, string) error {
	return nil
}

func TestContactHandlerSubmitDoesNotEchoMessage(t *testing.T) {
	h := NewContactHandler(&fakeContactService{})
	body := map[string]string{"name": "Lee", "email": "lee@example.com", "message": "Do you offer a trial?"}

	rec := serve(t, h.Submit, http.MethodPost, "/contacts", "/contacts", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "m1")

	rec = serve(t, h.Submit, http.MethodPost, "/contacts", "/contacts", body, nil)
	assertCode(t, rec, http.StatusConflict, appErrors.ErrConflict.Code)
}

func TestContactHandlerInbox(t *testing.T) {
	svc := &fakeContactService{}
	h := NewContactHandler(svc)

	rec := serve(t, h.List, http.MethodGet, "/contacts", "/contacts?status=New&search=trial", nil, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ContactStatusNew, svc.filter.Status)
	assert.Equal(t, "trial", svc.filter.Search)

	rec = serve(t, h.UpdateStatus, http.MethodPut, "/contacts/:id", "/contacts/m1", map[string]string{"status": "Read"}, adminClaims)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ContactStatusRead, svc.status)

	rec = serve(t, h.Delete, http.MethodDelete, "/contacts/:id", "/contacts/m1", nil, adminClaims)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
