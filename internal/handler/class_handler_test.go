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

type fakeClassService struct {
	filter    models.ClassFilter
	hit       bool
	deletedBy *models.JWTClaims
	deleteErr error
}

func (f *fakeClassService) List(_ context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, bool, error) {
	f.filter = filter
	return []models.ClassDetail{{Class: models.Class{ID: "c1", Name: "Salsa 101"}}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, f.hit, nil
}

func (f *fakeClassService) Get(_ context.Context, id string) (*models.ClassDetail, error) {
	if id != "c1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return &models.ClassDetail{Class: models.Class{ID: id}}, nil
}

func (f *fakeClassService) Create(_ context.Context, req models.UpsertClassRequest) (*models.ClassDetail, error) {
	return &models.ClassDetail{Class: models.Class{ID: "c2", Name: req.Name}}, nil
}

func (f *fakeClassService) Update(_ context.Context, id string, req models.UpsertClassRequest) (*models.ClassDetail, error) {
	return &models.ClassDetail{Class: models.Class{ID: id, Name: req.Name}}, nil
}

func (f *fakeClassService) Delete(_ context.Context, actor *models.JWTClaims, id string, _ models.RequestMeta) error {
	f.deletedBy = actor
	return f.deleteErr
}

func TestClassHandlerListReportsCacheHit(t *testing.T) {
	svc := &fakeClassService{hit: true}
	h := NewClassHandler(svc)

	rec := serve(t, h.List, http.MethodGet, "/classes", "/classes?style=salsa&level=Beginner&status=Active&instructor_id=i1&search=+night+", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "salsa", svc.filter.Style)
	assert.Equal(t, models.LevelBeginner, svc.filter.Level)
	assert.Equal(t, models.ClassStatusActive, svc.filter.Status)
	assert.Equal(t, "i1", svc.filter.InstructorID)
	assert.Equal(t, "night", svc.filter.Search)

	svc.hit = false
	rec = serve(t, h.List, http.MethodGet, "/classes", "/classes", nil, nil)
	assert.Equal(t, false, decode(t, rec).Meta["cache_hit"])
}

func TestClassHandlerGetNotFound(t *testing.T) {
	h := NewClassHandler(&fakeClassService{})
	rec := serve(t, h.Get, http.MethodGet, "/classes/:id", "/classes/zzz", nil, nil)
	assertCode(t, rec, http.StatusNotFound, appErrors.ErrNotFound.Code)
}

func TestClassHandlerCreateAndDelete(t *testing.T) {
	svc := &fakeClassService{}
	h := NewClassHandler(svc)

	rec := serve(t, h.Create, http.MethodPost, "/classes", "/classes", map[string]interface{}{"name": "Tango", "capacity": 10}, adminClaims)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(t, h.Delete, http.MethodDelete, "/classes/:id", "/classes/c1", nil, adminClaims)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, adminClaims, svc.deletedBy)

	svc.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "class not found")
	rec = serve(t, h.Delete, http.MethodDelete, "/classes/:id", "/classes/c9", nil, adminClaims)
	assertCode(t, rec, http.StatusNotFound, appErrors.ErrNotFound.Code)
}
