package audit

import (
	"context"

	"github.com/google/uuid"
)

type actorKey struct{}

// Actor identifies who performed an audited action
type Actor struct {
	MemberID  uuid.UUID // uuid.Nil for API keys and background jobs
	RequestID string
	IPAddress string
	UserAgent string
}

// WithActor stores the acting principal for Record
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
