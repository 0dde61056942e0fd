package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

var contactRowColumns = []string{"id", "name", "email", "phone", "subject", "message", "status", "created_at", "updated_at"}

func TestContactCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contacts")).
		WithArgs(sqlmock.AnyArg(), "Maya", "maya@example.com", nil, "Trial class", "Do you have a beginner slot?",
			models.ContactStatusNew, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	contact := &models.Contact{Name: "Maya", Email: "maya@example.com", Subject: "Trial class", Message: "Do you have a beginner slot?"}
	require.NoError(t, repo.Create(context.Background(), contact))
	assert.NotEmpty(t, contact.ID)
	assert.Equal(t, models.ContactStatusNew, contact.Status)
	assert.False(t, contact.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE status = $1 AND (LOWER(name) LIKE $2 OR LOWER(email) LIKE $2 OR LOWER(subject) LIKE $2) ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs(models.ContactStatusNew, "%maya%").
		WillReturnRows(sqlmock.NewRows(contactRowColumns).
			AddRow("c1", "Maya", "maya@example.com", nil, "", "hello there", "New", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contacts WHERE status = $1")).
		WithArgs(models.ContactStatusNew, "%maya%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.ContactFilter{
		Status: models.ContactStatusNew, Search: "Maya", Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET status = $2")).
		WithArgs("missing", models.ContactStatusRead, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.ContactStatusRead)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewContactRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contacts WHERE id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
