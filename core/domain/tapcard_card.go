package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of a physical NFC card.
type CardStatus string

const (
	CardStatusUnactivated CardStatus = "UNACTIVATED"
	CardStatusInProcess   CardStatus = "IN_PROCESS"
	CardStatusActivated   CardStatus = "ACTIVATED"
)

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusUnactivated, CardStatusInProcess, CardStatusActivated:
		return true
	}
	return false
}

// Activatable reports whether a card in this state may be linked to a profile.
func (s CardStatus) Activatable() bool {
	return s == CardStatusUnactivated || s == CardStatusInProcess
}

// PhysicalCard is one manufactured NFC card. ProfileID is set iff Status is ACTIVATED.
type PhysicalCard struct {
	UID         string     `json:"card_uid"`
	Status      CardStatus `json:"status"`
	ProfileID   *uuid.UUID `json:"profile_uid,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsLinked reports whether the card points at a profile.
func (c *PhysicalCard) IsLinked() bool {
	return c.Status == CardStatusActivated && c.ProfileID != nil
}

var cardUIDPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{3}$`)

// IsCardUID reports whether s is exactly two uppercase ASCII letters followed by three digits.
func IsCardUID(s string) bool {
	return cardUIDPattern.MatchString(s)
}

// CardUIDSpace is the number of distinct card UIDs.
const CardUIDSpace = 26 * 26 * 1000

// CardUIDAt maps n in [0, CardUIDSpace) onto a UID: AA000, AA001, ... ZZ999.
func CardUIDAt(n int) (string, error) {
	if n < 0 || n >= CardUIDSpace {
		return "", fmt.Errorf("card uid index %d out of range", n)
	}
	letters := n / 1000
	return fmt.Sprintf("%c%c%03d", 'A'+letters/26, 'A'+letters%26, n%1000), nil
}
