package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"

	"amparo/pkg/domain"
	"amparo/pkg/requestcontext"
)

// ActorContext returns a context populated the way the middleware chain
// would populate it, for service tests that skip HTTP.
func ActorContext(roles ...domain.Role) context.Context {
	actor := domain.Actor{
		ID:    domain.UserID(uuid.New()),
		Name:  "test actor",
		Roles: roles,
	}
	return ContextWithActor(actor)
}

// ContextWithActor builds a fully populated request context for the given actor.
func ContextWithActor(actor domain.Actor) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithActor(ctx, actor)
	ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.7", "amparo-tests/1.0")
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	return requestcontext.WithTime(ctx, time.Now())
}
