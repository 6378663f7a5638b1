package progress

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithRunID attaches a run ID to the context so pipeline stages can emit
// events without threading the ID through every signature.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RunIDFrom extracts the run ID attached by WithRunID.
func RunIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok
}
