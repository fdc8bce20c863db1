package out

import (
	"context"

	"tapcard_server/core/domain"

	"github.com/google/uuid"
)

// ContactExchangeRepository defines the outbound port for contact exchange persistence.
type ContactExchangeRepository interface {
	Create(ctx context.Context, ex *domain.ContactExchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ContactExchange, error)
	ListByOwner(ctx context.Context, cardOwnerID uuid.UUID, limit, offset int) ([]*domain.ContactExchange, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
