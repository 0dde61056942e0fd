package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

const contactColumns = `id, name, email, phone, subject, message, status, created_at, updated_at`

// ContactRepository persists contact form messages.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs the repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create inserts a contact message.
func (r *ContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now
	if contact.Status == "" {
		contact.Status = models.ContactStatusNew
	}
	const query = `INSERT INTO contacts (id, name, email, phone, subject, message, status, created_at, updated_at)
VALUES (:id, :name, :email, :phone, :subject, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contact); err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

// FindByID returns a contact message.
func (r *ContactRepository) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.GetContext(ctx, &contact, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &contact, nil
}

// List returns inbox messages, newest first.
func (r *ContactRepository) List(ctx context.Context, filter models.ContactFilter) ([]models.Contact, int, error) {
	var conds conditions
	if filter.Status != "" {
		conds.add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		conds.addSearch(filter.Search, "name", "email", "subject")
	}
	where := conds.where()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM contacts%s ORDER BY created_at DESC LIMIT %d OFFSET %d", contactColumns, where, limit, offset)
	var contacts []models.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM contacts"+where, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}
	return contacts, total, nil
}

// UpdateStatus moves a message to a new inbox status.
func (r *ContactRepository) UpdateStatus(ctx context.Context, id string, status models.ContactStatus) error {
	const query = `UPDATE contacts SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a contact message.
func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
