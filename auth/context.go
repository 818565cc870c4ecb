package auth

import (
	"context"

	"github.com/learnify/learnify-gateway/types"
)

type key int

// sessionContextKey is the key to access the decoded session
// on request contexts that are processed by the Attach middleware
const sessionContextKey key = iota

// WithSession stores a decoded session in the context
func WithSession(ctx context.Context, session *types.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext extracts the session stored by Attach
func SessionFromContext(ctx context.Context) (*types.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*types.Session)
	return session, ok && session != nil
}

// StateFromContext reports whether the request carries a valid session
func StateFromContext(ctx context.Context) types.SessionState {
	if _, ok := SessionFromContext(ctx); ok {
		return types.SessionAuthenticated
	}
	return types.SessionNone
}
