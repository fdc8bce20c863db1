package out

import (
	"context"
	"io"
)

// VisitGuard records that a visit has already logged a view.
type VisitGuard interface {
	// FirstView returns true the first time it is called for key within the guard window.
	FirstView(ctx context.Context, key string) (bool, error)
}

// ObjectStorage stores generated artifacts.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
