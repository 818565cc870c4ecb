package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/learnify/learnify-gateway/apierr"
	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/types"
	"github.com/learnify/learnify-gateway/util"
)

// Routes creates a new Chi router with all of the routes for the session flow.
// The parent router must run manager.Attach
func Routes(manager *auth.Manager, limiter *LoginLimiter) *chi.Mux {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Post("/login", Login(manager))
	})

	router.Get("/logout", manager.Logout)
	router.Post("/logout", manager.Logout)
	router.Get("/session", Session())

	return router
}

// LoginRequest is the body accepted by the login route, as JSON or as a form.
// Username is accepted as an alias for Document
type LoginRequest struct {
	Document string `json:"document"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeLoginRequest(r *http.Request) (LoginRequest, error) {
	var request LoginRequest
	if render.GetRequestContentType(r) == render.ContentTypeJSON {
		if err := render.DecodeJSON(r.Body, &request); err != nil {
			return LoginRequest{}, errors.Wrap(err, "malformed login request")
		}
	} else {
		request.Document = r.FormValue("document")
		request.Username = r.FormValue("username")
		request.Password = r.FormValue("password")
	}

	if strings.TrimSpace(request.Document) == "" {
		request.Document = request.Username
	}
	return request, nil
}

// Login checks the submitted credentials against the backend,
// stores the signed session token in the session cookie
// and returns it along with the session
func Login(manager *auth.Manager) http.HandlerFunc {
	// Use a closure to inject dependencies
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := decodeLoginRequest(r)
		if err != nil {
			util.ErrorWithCode(w, r, err, http.StatusBadRequest)
			return
		}

		signed, err := manager.Login(r.Context(), request.Document, request.Password)
		if err != nil {
			util.ErrorWithCode(w, r, err, loginFailureCode(err))
			return
		}

		manager.SetCookie(w, signed)
		render.Status(r, http.StatusOK)
		render.JSON(w, r, signed)
	}
}

// loginFailureCode maps a failed login to the status rendered to the client
func loginFailureCode(err error) int {
	var apiErr *apierr.APIError
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		if apiErr.Status >= http.StatusInternalServerError {
			return http.StatusBadGateway
		}
		return apiErr.Status
	case errors.Is(err, auth.ErrSignInRejected):
		// The backend was unreachable or answered with an unusable identity
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SessionResponse wraps the current session
type SessionResponse struct {
	Session *types.Session `json:"session"`
}

// Session returns the inner data of the user's session
func Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			util.ErrorWithCode(w, r, auth.ErrUnauthenticated, http.StatusUnauthorized)
			return
		}

		render.JSON(w, r, SessionResponse{Session: session})
	}
}
