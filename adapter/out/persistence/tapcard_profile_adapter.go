package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
	"tapcard_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ProfileAdapter implements out.ProfileRepository using PostgreSQL.
type ProfileAdapter struct {
	db *sqlx.DB
}

// NewProfileAdapter creates a new ProfileAdapter.
func NewProfileAdapter(db *sqlx.DB) *ProfileAdapter {
	return &ProfileAdapter{db: db}
}

var _ out.ProfileRepository = (*ProfileAdapter)(nil)

const profileColumns = `
	id, username, owner_ref, is_primary, is_premium, is_locked,
	display_name, title, company, bio, email, phone, website, avatar_url,
	company_logo_url, theme, template, social_links, section_order, team_id,
	version, created_at, updated_at`

// profileOrder breaks ties between profiles matching the same lookup.
const profileOrder = `ORDER BY is_primary DESC, is_premium DESC, created_at ASC`

// profileRow represents the database row for profiles.
type profileRow struct {
	ID             uuid.UUID      `db:"id"`
	Username       sql.NullString `db:"username"`
	OwnerRef       string         `db:"owner_ref"`
	IsPrimary      bool           `db:"is_primary"`
	IsPremium      bool           `db:"is_premium"`
	IsLocked       bool           `db:"is_locked"`
	DisplayName    string         `db:"display_name"`
	Title          string         `db:"title"`
	Company        string         `db:"company"`
	Bio            string         `db:"bio"`
	Email          string         `db:"email"`
	Phone          string         `db:"phone"`
	Website        string         `db:"website"`
	AvatarURL      string         `db:"avatar_url"`
	CompanyLogoURL string         `db:"company_logo_url"`
	Theme          string         `db:"theme"`
	Template       string         `db:"template"`
	SocialLinks    []byte         `db:"social_links"`
	SectionOrder   pq.StringArray `db:"section_order"`
	TeamID         uuid.NullUUID  `db:"team_id"`
	Version        int64          `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *profileRow) toDomain() *domain.Profile {
	p := &domain.Profile{
		ID:             r.ID,
		OwnerRef:       r.OwnerRef,
		IsPrimary:      r.IsPrimary,
		IsPremium:      r.IsPremium,
		IsLocked:       r.IsLocked,
		DisplayName:    r.DisplayName,
		Title:          r.Title,
		Company:        r.Company,
		Bio:            r.Bio,
		Email:          r.Email,
		Phone:          r.Phone,
		Website:        r.Website,
		AvatarURL:      r.AvatarURL,
		CompanyLogoURL: r.CompanyLogoURL,
		Theme:          r.Theme,
		Template:       r.Template,
		SectionOrder:   r.SectionOrder,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Username.Valid {
		u := r.Username.String
		p.Username = &u
	}
	if r.TeamID.Valid {
		id := r.TeamID.UUID
		p.TeamID = &id
	}
	if len(r.SocialLinks) > 0 {
		if err := json.Unmarshal(r.SocialLinks, &p.SocialLinks); err != nil {
			logger.Warn("[ProfileAdapter] profile %s has unreadable social_links: %v", r.ID, err)
		}
	}
	return p
}

func (a *ProfileAdapter) get(ctx context.Context, where string, args ...any) (*domain.Profile, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + where + ` ` + profileOrder + ` LIMIT 1`

	if err := a.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (a *ProfileAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return a.get(ctx, `id = $1`, id)
}

// GetByUsername expects an already normalized username.
func (a *ProfileAdapter) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	return a.get(ctx, `lower(username) = $1`, username)
}

func (a *ProfileAdapter) FindFirst(ctx context.Context, match out.ProfileMatch) (*domain.Profile, error) {
	switch match.Field {
	case out.ProfileFieldID:
		id, err := uuid.Parse(match.Value)
		if err != nil {
			return nil, ErrNotFound
		}
		return a.get(ctx, `id = $1`, id)
	case out.ProfileFieldUsername:
		return a.get(ctx, `lower(username) = $1`, match.Value)
	case out.ProfileFieldOwnerRef:
		return a.get(ctx, `owner_ref = $1`, match.Value)
	default:
		return nil, fmt.Errorf("%w: unknown profile field %q", ErrInvalidInput, match.Field)
	}
}

func (a *ProfileAdapter) ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Profile, error) {
	var rows []profileRow
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE owner_ref = $1
		ORDER BY is_primary DESC, created_at ASC`

	if err := a.db.SelectContext(ctx, &rows, query, ownerRef); err != nil {
		return nil, err
	}
	profiles := make([]*domain.Profile, len(rows))
	for i := range rows {
		profiles[i] = rows[i].toDomain()
	}
	return profiles, nil
}

func (a *ProfileAdapter) AccountPremium(ctx context.Context, ownerRef string) (bool, error) {
	var premium bool
	query := `SELECT EXISTS (SELECT 1 FROM profiles WHERE owner_ref = $1 AND is_premium)`
	if err := a.db.GetContext(ctx, &premium, query, ownerRef); err != nil {
		return false, err
	}
	return premium, nil
}

func (a *ProfileAdapter) ClaimUsername(ctx context.Context, profileID uuid.UUID, username string, expectedVersion int64) (*domain.Profile, error) {
	var row profileRow
	query := `
		UPDATE profiles
		SET username = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING ` + profileColumns

	err := a.db.QueryRowxContext(ctx, query, profileID, username, expectedVersion).StructScan(&row)
	switch {
	case err == nil:
		return row.toDomain(), nil
	case isUniqueViolation(err):
		return nil, ErrDuplicate
	case errors.Is(err, sql.ErrNoRows):
		if _, getErr := a.GetByID(ctx, profileID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	default:
		return nil, err
	}
}

func (a *ProfileAdapter) GetTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	var team struct {
		ID          uuid.UUID `db:"id"`
		Name        string    `db:"name"`
		CompanyName string    `db:"company_name"`
		LogoURL     string    `db:"logo_url"`
		Theme       string    `db:"theme"`
		Template    string    `db:"template"`
	}
	query := `SELECT id, name, company_name, logo_url, theme, template FROM teams WHERE id = $1`

	if err := a.db.GetContext(ctx, &team, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &domain.Team{
		ID:          team.ID,
		Name:        team.Name,
		CompanyName: team.CompanyName,
		LogoURL:     team.LogoURL,
		Theme:       team.Theme,
		Template:    team.Template,
	}, nil
}
