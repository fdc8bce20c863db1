package profile

import (
	"strings"

	"tapcard_server/core/domain"
	"tapcard_server/pkg/apperr"

	"github.com/gosimple/slug"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

// reservedUsernames collide with routes served next to /{token}.
var reservedUsernames = map[string]bool{
	"api":    true,
	"admin":  true,
	"health": true,
	"ready":  true,
	"static": true,
}

// ValidateUsername normalizes raw and checks it can be used as a profile path.
// Usernames that look like card UIDs or UUIDs are rejected since the resolver
// would try those lookups first.
func ValidateUsername(raw string) (string, error) {
	u := domain.NormalizeUsername(raw)
	switch {
	case len(u) < minUsernameLen || len(u) > maxUsernameLen:
		return "", apperr.InvalidInput("username", "must be between 3 and 32 characters")
	case !slug.IsSlug(u) || strings.Contains(u, "_"):
		return "", apperr.InvalidInput("username", "may only contain lowercase letters, digits and hyphens")
	case reservedUsernames[u]:
		return "", apperr.InvalidInput("username", "is reserved")
	case domain.IsCardUID(strings.ToUpper(u)):
		return "", apperr.InvalidInput("username", "must not look like a card id")
	case looksLikeUUID(u):
		return "", apperr.InvalidInput("username", "must not look like a profile id")
	}
	return u, nil
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdef", r) {
				return false
			}
		}
	}
	return true
}
