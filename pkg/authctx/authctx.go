package authctx

import "context"

type actorKey struct{}

var ActorContextKey = actorKey{}

// Actor identifies who is performing an operation. Gateway-level auth resolves
// the identity; services only consume it for scoping decisions.
type Actor struct {
	ID       string
	StoreIDs []string
	System   bool
}

// OwnsStore reports whether the actor manages the given store. System actors
// own every store.
func (a Actor) OwnsStore(storeID string) bool {
	if a.System {
		return true
	}
	for _, id := range a.StoreIDs {
		if id == storeID {
			return true
		}
	}
	return false
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, a)
}

// FromContext returns the actor attached to ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ActorContextKey).(Actor)
	return a, ok
}
