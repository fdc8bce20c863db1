package resolver

import (
	"context"
	"errors"
	"strings"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/out"
)

// Strategy is one step of the prioritized profile lookup.
type Strategy struct {
	Name string
	// Match builds the lookup for token, or returns false when the strategy does not apply.
	Match func(token string, kind domain.TokenKind) (out.ProfileMatch, bool)
}

// DefaultStrategies is id (UUID tokens only), then username, then owner_ref.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "id",
			Match: func(token string, kind domain.TokenKind) (out.ProfileMatch, bool) {
				if kind != domain.TokenUUID {
					return out.ProfileMatch{}, false
				}
				return out.ProfileMatch{Field: out.ProfileFieldID, Value: strings.ToLower(token)}, true
			},
		},
		{
			Name: "username",
			Match: func(token string, _ domain.TokenKind) (out.ProfileMatch, bool) {
				username := domain.NormalizeUsername(token)
				if username == "" {
					return out.ProfileMatch{}, false
				}
				return out.ProfileMatch{Field: out.ProfileFieldUsername, Value: username}, true
			},
		},
		{
			Name: "owner_ref",
			Match: func(token string, _ domain.TokenKind) (out.ProfileMatch, bool) {
				return out.ProfileMatch{Field: out.ProfileFieldOwnerRef, Value: token}, true
			},
		},
	}
}

// findFirst runs the strategies in order and returns the first match.
func findFirst(ctx context.Context, repo out.ProfileRepository, strategies []Strategy, token string, kind domain.TokenKind) (*domain.Profile, error) {
	for _, s := range strategies {
		match, ok := s.Match(token, kind)
		if !ok {
			continue
		}
		p, err := repo.FindFirst(ctx, match)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, out.ErrNotFound) {
			return nil, err
		}
	}
	return nil, out.ErrNotFound
}
