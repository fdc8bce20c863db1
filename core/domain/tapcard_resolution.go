package domain

import "github.com/google/uuid"

// TokenKind is the classification of a raw path token.
type TokenKind int

const (
	TokenPlainHandle TokenKind = iota
	TokenCardUID
	TokenUUID
)

func (k TokenKind) String() string {
	switch k {
	case TokenCardUID:
		return "card_uid"
	case TokenUUID:
		return "uuid"
	default:
		return "handle"
	}
}

// Outcome is the result kind of resolving a token.
type Outcome string

const (
	OutcomeRedirect         Outcome = "redirect"
	OutcomeProfile          Outcome = "profile"
	OutcomeActivationPrompt Outcome = "activation_prompt"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeTimeout          Outcome = "timeout"
	OutcomeLocked           Outcome = "locked"
)

// Resolution is exactly one outcome for a token.
type Resolution struct {
	Outcome   Outcome      `json:"outcome"`
	Token     string       `json:"token"`
	Location  string       `json:"location,omitempty"`
	CardUID   string       `json:"card_uid,omitempty"`
	Profile   *ProfileView `json:"profile,omitempty"`
	Retryable bool         `json:"retryable,omitempty"`
}

// ActivationOutcome is the result kind of an activation attempt.
type ActivationOutcome string

const (
	ActivationLinked       ActivationOutcome = "linked"
	ActivationNeedsProfile ActivationOutcome = "needs_profile_creation"
)

// ActivationResult reports where the client should go after activation.
type ActivationResult struct {
	Outcome   ActivationOutcome `json:"outcome"`
	CardUID   string            `json:"card_uid"`
	ProfileID *uuid.UUID        `json:"profile_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Location  string            `json:"location,omitempty"`
}
