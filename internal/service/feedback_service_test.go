package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

type fakeFeedbackRepo struct {
	mu    sync.Mutex
	items map[string]*models.Feedback
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{items: make(map[string]*models.Feedback)}
}

func (f *fakeFeedbackRepo) ExistsForPair(ctx context.Context, studentID, classID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.StudentID == studentID && item.ClassID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFeedbackRepo) Create(ctx context.Context, feedback *models.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	feedback.ID = uuid.NewString()
	clone := *feedback
	f.items[feedback.ID] = &clone
	return nil
}

func (f *fakeFeedbackRepo) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *item
	return &clone, nil
}

func (f *fakeFeedbackRepo) FindDetailByID(ctx context.Context, id string) (*models.FeedbackDetail, error) {
	item, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.FeedbackDetail{Feedback: *item}, nil
}

func (f *fakeFeedbackRepo) Update(ctx context.Context, feedback *models.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[feedback.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *feedback
	f.items[feedback.ID] = &clone
	return nil
}

func (f *fakeFeedbackRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeFeedbackRepo) List(ctx context.Context, filter models.FeedbackFilter) ([]models.FeedbackDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeedbackDetail
	for _, item := range f.items {
		if filter.ClassID != "" && item.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && item.StudentID != filter.StudentID {
			continue
		}
		if filter.InstructorID != "" && (item.InstructorID == nil || *item.InstructorID != filter.InstructorID) {
			continue
		}
		out = append(out, models.FeedbackDetail{Feedback: *item})
	}
	return out, len(out), nil
}

func (f *fakeFeedbackRepo) AverageRating(ctx context.Context, classID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum, n int
	for _, item := range f.items {
		if item.ClassID == classID {
			sum += item.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

func newTestFeedbackService() (*FeedbackService, *fakeFeedbackRepo) {
	repo := newFakeFeedbackRepo()
	classes := newFakeClassStore(&models.Class{ID: "c1", Name: "Salsa", InstructorID: strPtr("i1")})
	return NewFeedbackService(repo, classes, nil, zap.NewNop()), repo
}

func TestFeedbackSubmit(t *testing.T) {
	svc, _ := newTestFeedbackService()
	student := studentClaims("s1")

	created, err := svc.Submit(context.Background(), student, models.SubmitFeedbackRequest{ClassID: "c1", Rating: 5, Comment: `Great <script>alert(1)</script><b>class</b>`})
	require.NoError(t, err)
	assert.Equal(t, "i1", *created.InstructorID)
	assert.Equal(t, "Great class", created.Comment)

	_, err = svc.Submit(context.Background(), student, models.SubmitFeedbackRequest{ClassID: "c1", Rating: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	byStudent, _, err := svc.ListByStudent(context.Background(), "s1", models.FeedbackFilter{})
	require.NoError(t, err)
	byClass, _, avg, err := svc.ListByClass(context.Background(), "c1", models.FeedbackFilter{})
	require.NoError(t, err)
	byInstructor, _, err := svc.ListByInstructor(context.Background(), "i1", models.FeedbackFilter{})
	require.NoError(t, err)
	assert.Len(t, byStudent, 1)
	assert.Len(t, byClass, 1)
	assert.Len(t, byInstructor, 1)
	assert.Equal(t, 5.0, avg)
}

func TestFeedbackCommentKeepsPunctuation(t *testing.T) {
	svc, repo := newTestFeedbackService()

	created, err := svc.Submit(context.Background(), studentClaims("s1"), models.SubmitFeedbackRequest{ClassID: "c1", Rating: 4, Comment: `Tom & Jerry's "salsa" <i>class</i>`})
	require.NoError(t, err)
	assert.Equal(t, `Tom & Jerry's "salsa" class`, created.Comment)
	assert.Equal(t, `Tom & Jerry's "salsa" class`, repo.items[created.ID].Comment)
}

func TestFeedbackSubmitErrors(t *testing.T) {
	svc, _ := newTestFeedbackService()
	cases := []struct {
		name string
		req  models.SubmitFeedbackRequest
		code string
	}{
		{"rating too high", models.SubmitFeedbackRequest{ClassID: "c1", Rating: 6}, appErrors.ErrValidation.Code},
		{"rating missing", models.SubmitFeedbackRequest{ClassID: "c1"}, appErrors.ErrValidation.Code},
		{"unknown class", models.SubmitFeedbackRequest{ClassID: "zz", Rating: 4}, appErrors.ErrNotFound.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), studentClaims("s1"), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestFeedbackUpdateAndDeleteOwnership(t *testing.T) {
	svc, repo := newTestFeedbackService()
	created, err := svc.Submit(context.Background(), studentClaims("s1"), models.SubmitFeedbackRequest{ClassID: "c1", Rating: 2})
	require.NoError(t, err)

	rating := 4
	_, err = svc.Update(context.Background(), studentClaims("s2"), created.ID, models.UpdateFeedbackRequest{Rating: &rating})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), studentClaims("s1"), created.ID, models.UpdateFeedbackRequest{Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)

	err = svc.Delete(context.Background(), studentClaims("s2"), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, created.ID))
	assert.Empty(t, repo.items)

	err = svc.Delete(context.Background(), studentClaims("s1"), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
