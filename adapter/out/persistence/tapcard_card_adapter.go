// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CardAdapter implements out.CardRepository using PostgreSQL.
type CardAdapter struct {
	db *sqlx.DB
}

// NewCardAdapter creates a new CardAdapter.
func NewCardAdapter(db *sqlx.DB) *CardAdapter {
	return &CardAdapter{db: db}
}

var _ out.CardRepository = (*CardAdapter)(nil)

const cardColumns = `card_uid, status, profile_uid, activated_at, version, created_at, updated_at`

// cardRow represents the database row for physical_cards.
type cardRow struct {
	UID         string        `db:"card_uid"`
	Status      string        `db:"status"`
	ProfileUID  uuid.NullUUID `db:"profile_uid"`
	ActivatedAt sql.NullTime  `db:"activated_at"`
	Version     int64         `db:"version"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// toDomain rejects statuses outside the card lifecycle.
func (r *cardRow) toDomain() (*domain.PhysicalCard, error) {
	status := domain.CardStatus(r.Status)
	if !status.IsValid() {
		return nil, fmt.Errorf("card %s: unknown status %q", r.UID, r.Status)
	}
	card := &domain.PhysicalCard{
		UID:       r.UID,
		Status:    status,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ProfileUID.Valid {
		id := r.ProfileUID.UUID
		card.ProfileID = &id
	}
	if r.ActivatedAt.Valid {
		t := r.ActivatedAt.Time
		card.ActivatedAt = &t
	}
	return card, nil
}

func (a *CardAdapter) GetByUID(ctx context.Context, uid string) (*domain.PhysicalCard, error) {
	var row cardRow
	query := `SELECT ` + cardColumns + ` FROM physical_cards WHERE card_uid = $1`

	if err := a.db.GetContext(ctx, &row, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

// Activate is a compare-and-set on status and version.
func (a *CardAdapter) Activate(ctx context.Context, uid string, profileID uuid.UUID, expectedVersion int64) (*domain.PhysicalCard, error) {
	var row cardRow
	query := `
		UPDATE physical_cards
		SET status = 'ACTIVATED', profile_uid = $2, activated_at = now(),
		    version = version + 1, updated_at = now()
		WHERE card_uid = $1 AND status <> 'ACTIVATED' AND version = $3
		RETURNING ` + cardColumns

	err := a.db.QueryRowxContext(ctx, query, uid, profileID, expectedVersion).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a.missOrConflict(ctx, uid)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (a *CardAdapter) Delink(ctx context.Context, uid string, expectedVersion int64) (*domain.PhysicalCard, error) {
	var row cardRow
	query := `
		UPDATE physical_cards
		SET status = 'UNACTIVATED', profile_uid = NULL, activated_at = NULL,
		    version = version + 1, updated_at = now()
		WHERE card_uid = $1 AND status = 'ACTIVATED' AND version = $2
		RETURNING ` + cardColumns

	err := a.db.QueryRowxContext(ctx, query, uid, expectedVersion).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a.missOrConflict(ctx, uid)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// missOrConflict tells a vanished card from a lost compare-and-set.
func (a *CardAdapter) missOrConflict(ctx context.Context, uid string) error {
	var exists bool
	if err := a.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM physical_cards WHERE card_uid = $1)`, uid); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (a *CardAdapter) InsertBatch(ctx context.Context, uids []string) ([]string, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var inserted []string
	query := `
		INSERT INTO physical_cards (card_uid)
		SELECT unnest($1::text[])
		ON CONFLICT (card_uid) DO NOTHING
		RETURNING card_uid`

	if err := a.db.SelectContext(ctx, &inserted, query, pq.Array(uids)); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (a *CardAdapter) ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]*domain.PhysicalCard, error) {
	if len(profileIDs) == 0 {
		return []*domain.PhysicalCard{}, nil
	}
	ids := make([]string, len(profileIDs))
	for i, id := range profileIDs {
		ids[i] = id.String()
	}

	var rows []cardRow
	query := `SELECT ` + cardColumns + ` FROM physical_cards
		WHERE profile_uid = ANY($1::uuid[])
		ORDER BY activated_at DESC NULLS LAST, card_uid`

	if err := a.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	cards := make([]*domain.PhysicalCard, len(rows))
	for i := range rows {
		card, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		cards[i] = card
	}
	return cards, nil
}
