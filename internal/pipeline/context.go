package pipeline

import (
	"context"

	"github.com/iliyamo/tenant-auth-gateway/internal/model"
)

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*model.Identity)
	return id, ok && id != nil
}
