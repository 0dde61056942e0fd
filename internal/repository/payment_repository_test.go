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

func TestPaymentStatusTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "amount", "count"}).
			AddRow("Paid", 200.0, 2).
			AddRow("Pending", 80.0, 1))

	rows, err := repo.StatusTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.PaymentStatusPaid, rows[0].Status)
	assert.Equal(t, 200.0, rows[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMonthlyPaidTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	since := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND COALESCE(paid_date, created_at) >= $2")).
		WithArgs(models.PaymentStatusPaid, since).
		WillReturnRows(sqlmock.NewRows([]string{"year", "month", "amount", "count"}).AddRow(2024, 5, 150.0, 2))

	rows, err := repo.MonthlyPaidTotals(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Month)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMarkOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)
	cutoff := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4")).
		WithArgs(models.PaymentStatusOverdue, sqlmock.AnyArg(), models.PaymentStatusPending, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.MarkOverdue(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{StudentID: "s1", ClassID: "c1", Amount: 50, Month: "May 2024", DueDate: time.Now()}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.NotEmpty(t, payment.ID)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
