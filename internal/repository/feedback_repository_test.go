package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

func TestFeedbackExistsForPair(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM feedback WHERE student_id = $1 AND class_id = $2)")).
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForPair(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackListByInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)
	now := time.Now()

	columns := []string{"id", "class_id", "instructor_id", "student_id", "rating", "comment", "submitted_at", "updated_at",
		"student_name", "class_name", "instructor_name"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.instructor_id = $1 ORDER BY f.rating ASC LIMIT 20 OFFSET 0")).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("f1", "c1", "i1", "s1", 4, "great", now, now, "Sam", "Salsa", "Ines"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM feedback f WHERE f.instructor_id = $1")).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.FeedbackFilter{InstructorID: "i1", SortBy: "rating", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, items[0].ClassName)
	assert.Equal(t, "Salsa", *items[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackAverageRating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(AVG(rating), 0)::float8 FROM feedback WHERE class_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.5))

	avg, err := repo.AverageRating(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, avg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
