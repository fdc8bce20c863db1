package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/crypto"
	"tapcard_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ContactExchangeAdapter implements out.ContactExchangeRepository using PostgreSQL.
// Visitor email and phone are sealed at rest when a cipher is configured.
type ContactExchangeAdapter struct {
	db     *sqlx.DB
	cipher *crypto.FieldCipher
}

// NewContactExchangeAdapter creates a new ContactExchangeAdapter. cipher may be nil.
func NewContactExchangeAdapter(db *sqlx.DB, cipher *crypto.FieldCipher) *ContactExchangeAdapter {
	if cipher == nil {
		logger.Warn("Contact exchange encryption disabled: no ENCRYPTION_KEY")
	}
	return &ContactExchangeAdapter{db: db, cipher: cipher}
}

var _ out.ContactExchangeRepository = (*ContactExchangeAdapter)(nil)

// exchangeRow represents the database row for contact_exchanges.
type exchangeRow struct {
	ID          uuid.UUID `db:"id"`
	CardOwnerID uuid.UUID `db:"card_owner_id"`
	Name        string    `db:"name"`
	Email       string    `db:"email"`
	Phone       string    `db:"phone"`
	JobTitle    string    `db:"job_title"`
	Company     string    `db:"company"`
	CreatedAt   time.Time `db:"created_at"`
}

func (a *ContactExchangeAdapter) seal(value string) (string, error) {
	if a.cipher == nil || value == "" {
		return value, nil
	}
	return a.cipher.Seal(value)
}

// open falls back to the stored value so a rotated key does not hide rows.
func (a *ContactExchangeAdapter) open(value string) string {
	if a.cipher == nil || !crypto.IsSealed(value) {
		return value
	}
	plain, err := a.cipher.Open(value)
	if err != nil {
		logger.Warn("[ContactExchangeAdapter] cannot decrypt field: %v", err)
		return value
	}
	return plain
}

func (a *ContactExchangeAdapter) toDomain(r *exchangeRow) *domain.ContactExchange {
	return &domain.ContactExchange{
		ID:          r.ID,
		CardOwnerID: r.CardOwnerID,
		Name:        r.Name,
		Email:       a.open(r.Email),
		Phone:       a.open(r.Phone),
		JobTitle:    r.JobTitle,
		Company:     r.Company,
		CreatedAt:   r.CreatedAt,
	}
}

func (a *ContactExchangeAdapter) Create(ctx context.Context, ex *domain.ContactExchange) error {
	email, err := a.seal(ex.Email)
	if err != nil {
		return err
	}
	phone, err := a.seal(ex.Phone)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contact_exchanges (id, card_owner_id, name, email, phone, job_title, company, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = a.db.ExecContext(ctx, query,
		ex.ID, ex.CardOwnerID, ex.Name, email, phone, ex.JobTitle, ex.Company, ex.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (a *ContactExchangeAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.ContactExchange, error) {
	var row exchangeRow
	query := `
		SELECT id, card_owner_id, name, email, phone, job_title, company, created_at
		FROM contact_exchanges
		WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a.toDomain(&row), nil
}

func (a *ContactExchangeAdapter) ListByOwner(ctx context.Context, cardOwnerID uuid.UUID, limit, offset int) ([]*domain.ContactExchange, int, error) {
	var total int
	if err := a.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contact_exchanges WHERE card_owner_id = $1`, cardOwnerID); err != nil {
		return nil, 0, err
	}

	var rows []exchangeRow
	query := `
		SELECT id, card_owner_id, name, email, phone, job_title, company, created_at
		FROM contact_exchanges
		WHERE card_owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := a.db.SelectContext(ctx, &rows, query, cardOwnerID, limit, offset); err != nil {
		return nil, 0, err
	}
	items := make([]*domain.ContactExchange, len(rows))
	for i := range rows {
		items[i] = a.toDomain(&rows[i])
	}
	return items, total, nil
}

func (a *ContactExchangeAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM contact_exchanges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
