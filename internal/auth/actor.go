package auth

import "context"

// Actor identifies the operator performing an action. Resolution happens at
// the transport boundary; domain modules only consume the resolved value.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Anonymous is the fallback identity used when no actor is authenticated.
// Audit entries are still recorded for anonymous sessions.
var Anonymous = Actor{ID: "anonymous", Name: "Anonymous"}

// Resolver extracts the current actor, reporting false when none is
// authenticated.
type Resolver func(ctx context.Context) (Actor, bool)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil || v.ID == "" {
		return Actor{}, false
	}
	return *v, true
}
