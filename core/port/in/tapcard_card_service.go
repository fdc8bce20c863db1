package in

import (
	"context"

	"tapcard_server/core/domain"
)

type CardService interface {
	Activate(ctx context.Context, ownerRef, cardUID string) (*domain.ActivationResult, error)
	Delink(ctx context.Context, ownerRef, cardUID string) (*domain.PhysicalCard, error)
	ListMine(ctx context.Context, ownerRef string) ([]*domain.PhysicalCard, error)
}

type ProvisioningService interface {
	Provision(ctx context.Context, req *ProvisionRequest) (*ProvisionResult, error)
}

type ProvisionRequest struct {
	Count  int    `json:"count" validate:"required,min=1,max=5000"`
	Prefix string `json:"prefix,omitempty" validate:"omitempty,len=2,alpha,uppercase"`
}

type ProvisionResult struct {
	CardUIDs    []string `json:"card_uids"`
	Requested   int      `json:"requested"`
	Inserted    int      `json:"inserted"`
	ManifestURL string   `json:"manifest_url,omitempty"`
}
