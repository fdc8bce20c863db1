package in

import (
	"context"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

type ContactExchangeService interface {
	Submit(ctx context.Context, profileID uuid.UUID, req *SubmitExchangeRequest) (*domain.ContactExchange, error)
	List(ctx context.Context, ownerRef string, profileID uuid.UUID, limit, offset int) ([]*domain.ContactExchange, int, error)
	Delete(ctx context.Context, ownerRef string, id uuid.UUID) error
}

type SubmitExchangeRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=40"`
	JobTitle string `json:"job_title,omitempty" validate:"omitempty,max=120"`
	Company  string `json:"company,omitempty" validate:"omitempty,max=120"`
}
