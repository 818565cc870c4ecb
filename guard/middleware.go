package guard

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/metrics"
)

// Middleware enforces the route table on every request that is not excluded
// by matcher. It reads the session stored by auth.Manager.Attach,
// so it must be mounted after it
func Middleware(routes Routes, matcher *Matcher, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matcher != nil && matcher.Excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			session, _ := auth.SessionFromContext(r.Context())
			decision := routes.Decide(session, r.URL.Path)
			metrics.RecordGuardDecision(decision.String())

			if decision == Allow {
				next.ServeHTTP(w, r)
				return
			}

			target := routes.Target(decision)
			event := logger.Debug().
				Str("path", r.URL.Path).
				Stringer("decision", decision).
				Str("target", target)
			if session != nil {
				event = event.Str("user_id", string(session.Subject)).Stringer("role", session.Role)
			}
			event.Msg("route guard redirect")

			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}
