package resolver

import (
	"regexp"

	"tapcard_server/core/domain"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Classify decides how a raw path token should be looked up. It is total:
// anything that is neither a card UID nor a canonical UUID is a plain handle.
func Classify(token string) domain.TokenKind {
	switch {
	case domain.IsCardUID(token):
		return domain.TokenCardUID
	case uuidPattern.MatchString(token):
		return domain.TokenUUID
	default:
		return domain.TokenPlainHandle
	}
}
