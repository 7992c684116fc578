package utils

import (
	"context"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
)

type CtxKey string

const (
	ctxIdentity  CtxKey = "identity"
	ctxRequestID CtxKey = "request_id"
)

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

// IdentityFrom returns the caller attached by the auth middleware.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(models.Identity)
	return id, ok && id.UserID != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestID).(string)
	return s
}
