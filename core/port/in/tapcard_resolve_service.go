package in

import (
	"context"

	"tapcard_server/core/domain"
)

type ResolveService interface {
	Resolve(ctx context.Context, req *ResolveRequest) (*domain.Resolution, error)
}

// ResolveRequest carries a raw path token and the visit it belongs to.
// VisitID is empty when the client did not send one; Viewer is the signed-in owner_ref, if any.
type ResolveRequest struct {
	Token   string
	VisitID string
	Viewer  string
}
