package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/learnify/learnify-gateway/backend"
	"github.com/learnify/learnify-gateway/metrics"
	"github.com/learnify/learnify-gateway/types"
)

// SessionCookieName is the cookie holding the signed session token.
// It is the name jwtauth.TokenFromCookie looks for
const SessionCookieName = "jwt"

// CookieOptions controls the attributes of the session cookie
type CookieOptions struct {
	Domain string
	Secure bool
}

// SignedSession is the result of a successful login.
// Token is only ever sent in the HttpOnly session cookie
type SignedSession struct {
	Token   string         `json:"-"`
	Session *types.Session `json:"session"`
}

// Manager bridges the credential authenticator and the signed session token
type Manager struct {
	authenticator CredentialAuthenticator
	jwtManager    *JWTManager
	cookie        CookieOptions
	loginRoute    string
	logger        zerolog.Logger
}

// NewManager creates a new session Manager.
// loginRoute is where Logout sends the client
func NewManager(authenticator CredentialAuthenticator, jwtManager *JWTManager,
	cookie CookieOptions, loginRoute string, logger zerolog.Logger) *Manager {

	return &Manager{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		cookie:        cookie,
		loginRoute:    loginRoute,
		logger:        logger,
	}
}

// Login authenticates the credentials and mints a signed session token.
// It does not set cookies or redirect
func (m *Manager) Login(ctx context.Context, document string, password string) (*SignedSession, error) {
	m.logger.Debug().Str("document", document).Stringer("state", types.SessionPending).Msg("credentials submitted")

	identity, backendToken, err := m.authenticator.Authenticate(ctx, document, password)
	if err != nil {
		if errors.Is(err, ErrSignInRejected) || errors.Is(err, ErrMissingCredentials) {
			metrics.RecordLogin("rejected")
		} else {
			metrics.RecordLogin("error")
		}
		return nil, err
	}

	token, err := m.jwtManager.IssueJWT(*identity, backendToken)
	if err != nil {
		metrics.RecordLogin("error")
		return nil, err
	}
	signed, err := m.jwtManager.SignToken(token)
	if err != nil {
		metrics.RecordLogin("error")
		return nil, err
	}

	session := token.Claims.(*Claims).Session()
	metrics.RecordLogin("success")
	m.logger.Info().
		Str("user_id", string(session.Subject)).
		Stringer("role", session.Role).
		Str("session_id", session.ID).
		Stringer("state", types.SessionAuthenticated).
		Msg("session issued")

	return &SignedSession{
		Token:   signed,
		Session: session,
	}, nil
}

// CurrentSession decodes and validates the token presented with the request,
// looking first at the session cookie and then at a Bearer header.
// A cookie that fails to decode does not hide a valid header
func (m *Manager) CurrentSession(r *http.Request) (*types.Session, error) {
	var err error = ErrUnauthenticated
	for _, token := range []string{jwtauth.TokenFromCookie(r), jwtauth.TokenFromHeader(r)} {
		if token == "" {
			continue
		}

		var session *types.Session
		session, err = m.jwtManager.Decode(token)
		if err == nil {
			return session, nil
		}
	}

	return nil, err
}

// SetCookie stores the signed session token in the session cookie
func (m *Manager) SetCookie(w http.ResponseWriter, signed *SignedSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed.Token,
		Path:     "/",
		Domain:   m.cookie.Domain,
		Expires:  signed.Session.ExpiresAt,
		MaxAge:   int(m.jwtManager.MaxAge() / time.Second),
		Secure:   m.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie from the client
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   m.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout clears the client-held token and redirects to the login route.
// It succeeds whether or not a session existed
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := SessionFromContext(r.Context()); ok {
		m.logger.Info().Str("user_id", string(session.Subject)).Str("session_id", session.ID).Msg("session ended")
	}

	m.ClearCookie(w)
	metrics.RecordLogout()
	http.Redirect(w, r, m.loginRoute, http.StatusSeeOther)
}

// Attach decodes the session presented with each request and stores it in the
// request context. It never rejects a request; the route guard does that
func (m *Manager) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.CurrentSession(r)
		if err != nil {
			// The bare sentinel means no token was presented at all
			if err != ErrUnauthenticated {
				m.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("ignoring invalid session token")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// TokenSupplier returns a backend.TokenSupplier that yields the backend token
// of the session in the request context, failing when there is none
func (m *Manager) TokenSupplier() backend.TokenSupplier {
	return func(ctx context.Context) (string, error) {
		session, ok := SessionFromContext(ctx)
		if !ok {
			return "", ErrUnauthenticated
		}
		if session.BackendToken == "" {
			return "", errors.New("session carries no backend token")
		}
		return session.BackendToken, nil
	}
}
