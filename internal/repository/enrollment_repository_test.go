package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

var classRowColumns = []string{"id", "name", "style", "level", "instructor_id", "schedule", "capacity", "current_enrollment", "price", "status", "created_at", "updated_at"}

func TestRunInTxCommitsSeatedEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes c WHERE c.id = $1 FOR UPDATE")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(classRowColumns).
			AddRow("c1", "Salsa", "Latin", "Beginner", nil, "Mon 18:00", 1, 0, 80.0, "Active", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2")).
		WithArgs("s1", "c1", models.EnrollmentStatusPending, models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET current_enrollment = $2, status = $3")).
		WithArgs("c1", 1, models.ClassStatusFull, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx EnrollmentTx) error {
		class, err := tx.LockClass(context.Background(), "c1")
		if err != nil {
			return err
		}
		exists, err := tx.ExistsOpenEnrollment(context.Background(), "s1", class.ID)
		if err != nil || exists {
			return errors.New("unexpected open enrollment")
		}
		enrollment := &models.Enrollment{StudentID: "s1", ClassID: class.ID, Status: models.EnrollmentStatusActive}
		if err := tx.InsertEnrollment(context.Background(), enrollment); err != nil {
			return err
		}
		if err := tx.UpdateClassOccupancy(context.Background(), class.ID, 1, models.ClassStatusFull); err != nil {
			return err
		}
		return tx.InsertPayment(context.Background(), &models.Payment{StudentID: "s1", ClassID: class.ID, Amount: class.Price, Month: "May 2024", DueDate: now})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("promotion failed")
	err := repo.RunInTx(context.Background(), func(tx EnrollmentTx) error {
		if err := tx.DeleteEnrollment(context.Background(), "e1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftWaitlistAfter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET waitlist_position = waitlist_position - 1")).
		WithArgs("c1", 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.RunInTx(context.Background(), func(tx EnrollmentTx) error {
		return tx.ShiftWaitlistAfter(context.Background(), "c1", 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEnrollmentsByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	columns := []string{"id", "student_id", "class_id", "enrolled_at", "status", "is_waitlisted", "waitlist_position", "approved_at", "approved_by",
		"student_name", "student_email", "class_name", "class_style", "class_level", "class_schedule", "class_price", "approver_name"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 ORDER BY e.enrolled_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("e1", "s1", "c1", now, "Pending", true, 1, nil, nil, "Ada", "ada@example.com", "Salsa", "Latin", "Beginner", "Mon", 80.0, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e WHERE e.class_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.True(t, items[0].IsWaitlisted)
	require.NotNil(t, items[0].WaitlistPosition)
	assert.Equal(t, 1, *items[0].WaitlistPosition)
	assert.Equal(t, "Ada", *items[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
