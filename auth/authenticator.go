package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/learnify/learnify-gateway/backend"
	"github.com/learnify/learnify-gateway/types"
)

// LoginPath is the backend endpoint that checks credentials
const LoginPath = "/login"

// LoginRequest is the body sent to the backend login endpoint
type LoginRequest struct {
	Document string `json:"document"`
	Password string `json:"password"`
}

// LoginResponse is the body the backend answers a successful login with.
// Role is a pointer so that a missing role is never read as RoleAdmin
type LoginResponse struct {
	ID          types.UserID `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Role        *types.Role  `json:"role"`
	AccessToken string       `json:"access_token"`
}

// CredentialAuthenticator checks a document/password pair
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, document string, password string) (*types.Identity, string, error)
}

// Authenticator performs the login exchange against the backend API
type Authenticator struct {
	client backend.Poster
	logger zerolog.Logger
}

// NewAuthenticator creates a new Authenticator that uses the given backend client
func NewAuthenticator(client backend.Poster, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		client: client,
		logger: logger,
	}
}

// Authenticate sends the credentials to the backend and returns the identity
// it vouches for, along with the backend's own access token (possibly empty).
// Any backend failure fails the authentication
func (a *Authenticator) Authenticate(ctx context.Context, document string, password string) (*types.Identity, string, error) {
	document = strings.TrimSpace(document)
	if document == "" || password == "" {
		return nil, "", ErrMissingCredentials
	}

	var response LoginResponse
	err := a.client.Post(ctx, LoginPath, LoginRequest{
		Document: document,
		Password: password,
	}, &response)
	if err != nil {
		a.logger.Info().Err(err).Msg("backend rejected sign-in")
		return nil, "", NewSignInError(err)
	}

	// The identity must come from the backend, never from the request
	if response.ID == "" || response.Role == nil || !response.Role.Valid() {
		a.logger.Warn().
			Str("user_id", string(response.ID)).
			Bool("has_role", response.Role != nil).
			Msg("backend login response did not contain a usable identity")
		return nil, "", NewSignInError(ErrInvalidIdentity)
	}

	identity := types.Identity{
		ID:    response.ID,
		Name:  response.Name,
		Email: response.Email,
		Role:  *response.Role,
	}

	return &identity, response.AccessToken, nil
}
