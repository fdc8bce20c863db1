package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Profile is a user's digital business card.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  *string   `json:"username,omitempty"`
	OwnerRef  string    `json:"owner_ref"`
	IsPrimary bool      `json:"is_primary"`
	IsPremium bool      `json:"is_premium"`
	IsLocked  bool      `json:"is_locked"`

	DisplayName    string            `json:"display_name"`
	Title          string            `json:"title,omitempty"`
	Company        string            `json:"company,omitempty"`
	Bio            string            `json:"bio,omitempty"`
	Email          string            `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Website        string            `json:"website,omitempty"`
	AvatarURL      string            `json:"avatar_url,omitempty"`
	CompanyLogoURL string            `json:"company_logo_url,omitempty"`
	Theme          string            `json:"theme,omitempty"`
	Template       string            `json:"template,omitempty"`
	SocialLinks    map[string]string `json:"social_links,omitempty"`
	SectionOrder   []string          `json:"section_order,omitempty"`

	TeamID *uuid.UUID `json:"team_id,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Handle is the canonical path segment for the profile: username when claimed, else id.
func (p *Profile) Handle() string {
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return p.ID.String()
}

// Team carries branding shared by member profiles.
type Team struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	Template    string    `json:"template,omitempty"`
}

// Branding is the effective company/theme presentation of a profile.
type Branding struct {
	CompanyName string `json:"company_name,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	Theme       string `json:"theme,omitempty"`
	Template    string `json:"template,omitempty"`
}

// EffectiveBranding applies non-empty team settings over the profile's own.
func EffectiveBranding(p *Profile, team *Team) Branding {
	b := Branding{
		CompanyName: p.Company,
		LogoURL:     p.CompanyLogoURL,
		Theme:       p.Theme,
		Template:    p.Template,
	}
	if team == nil {
		return b
	}
	if team.CompanyName != "" {
		b.CompanyName = team.CompanyName
	}
	if team.LogoURL != "" {
		b.LogoURL = team.LogoURL
	}
	if team.Theme != "" {
		b.Theme = team.Theme
	}
	if team.Template != "" {
		b.Template = team.Template
	}
	return b
}

// Section names used by NormalizeSectionOrder.
const (
	SectionBio     = "bio"
	SectionSocial  = "social"
	SectionContact = "contact"
)

// DefaultSectionOrder is used when a profile has no stored ordering.
var DefaultSectionOrder = []string{"bio", "social", "contact", "links", "gallery", "video"}

// NormalizeSectionOrder cleans a stored ordering and guarantees a "contact" entry,
// placed right after "bio", else after "social", else at the end.
func NormalizeSectionOrder(order []string) []string {
	seen := make(map[string]bool, len(order))
	out := make([]string, 0, len(order)+1)
	for _, s := range order {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultSectionOrder...)
	}
	if seen[SectionContact] {
		return out
	}

	anchor := indexOf(out, SectionBio)
	if anchor < 0 {
		anchor = indexOf(out, SectionSocial)
	}
	if anchor < 0 {
		return append(out, SectionContact)
	}
	out = append(out, "")
	copy(out[anchor+2:], out[anchor+1:])
	out[anchor+1] = SectionContact
	return out
}

func indexOf(items []string, target string) int {
	for i, s := range items {
		if s == target {
			return i
		}
	}
	return -1
}

// NormalizeUsername folds case and strips surrounding whitespace and a leading '@'.
func NormalizeUsername(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	return cases.Fold().String(s)
}

// ProfileView is a resolved profile with its derived presentation fields.
type ProfileView struct {
	Profile          *Profile `json:"profile"`
	Team             *Team    `json:"team,omitempty"`
	Branding         Branding `json:"branding"`
	EffectivePremium bool     `json:"effective_premium"`
	SectionOrder     []string `json:"section_order"`
}
