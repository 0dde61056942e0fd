package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
)

var errCacheMissForTest = appErrors.ErrCacheMiss

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserStore) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone != nil && *u.Phone == phone && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return nil
}

func (f *fakeUserStore) SetActive(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.IsActive = active
	return nil
}

func (f *fakeUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserStore) UpdateProfile(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	u.Name = user.Name
	u.Phone = user.Phone
	return nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Action)
	}
	return out
}

type fakeCacheRepo struct {
	mu       sync.Mutex
	values   map[string]interface{}
	patterns []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: make(map[string]interface{})}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return errCacheMissForTest
	}
	switch d := dest.(type) {
	case *models.PaymentSummary:
		*d = value.(models.PaymentSummary)
	case *cachedClassList:
		*d = value.(cachedClassList)
	}
	return nil
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case *models.PaymentSummary:
		f.values[key] = *v
	case *cachedClassList:
		f.values[key] = *v
	default:
		f.values[key] = value
	}
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

type fakeClassStore struct {
	mu      sync.Mutex
	classes map[string]*models.Class
	lists   int
}

func newFakeClassStore(classes ...*models.Class) *fakeClassStore {
	store := &fakeClassStore{classes: make(map[string]*models.Class)}
	for _, c := range classes {
		store.classes[c.ID] = c
	}
	return store
}

func (f *fakeClassStore) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []models.ClassDetail
	for _, c := range f.classes {
		if filter.Style != "" && !strings.EqualFold(c.Style, filter.Style) {
			continue
		}
		if filter.InstructorID != "" && (c.InstructorID == nil || *c.InstructorID != filter.InstructorID) {
			continue
		}
		out = append(out, models.ClassDetail{Class: *c})
	}
	return out, len(out), nil
}

func (f *fakeClassStore) FindByID(ctx context.Context, id string) (*models.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (f *fakeClassStore) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ClassDetail{Class: *class}, nil
}

func (f *fakeClassStore) Create(ctx context.Context, class *models.Class) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	clone := *class
	f.classes[class.ID] = &clone
	return nil
}

func (f *fakeClassStore) Update(ctx context.Context, class *models.Class) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *class
	f.classes[class.ID] = &clone
	return nil
}

func (f *fakeClassStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.classes, id)
	return nil
}
