package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactExchange is contact info a visitor left on a profile. Never updated.
type ContactExchange struct {
	ID          uuid.UUID `json:"id"`
	CardOwnerID uuid.UUID `json:"card_owner_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	JobTitle    string    `json:"job_title,omitempty"`
	Company     string    `json:"company,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
