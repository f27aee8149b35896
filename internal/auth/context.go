package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const actorIDKey contextKey = "actorID"

// ContextWithActorID returns a new context that carries the authenticated
// caller identity.
func ContextWithActorID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorIDKey, id)
}

// ActorIDFromContext retrieves the authenticated caller from the context, if
// any. System-originated work carries no actor.
func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(actorIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
