package auth

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/jwtauth"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/learnify/learnify-gateway/types"
)

// JWTManager signs and verifies session tokens with the process-wide secret
type JWTManager struct {
	Auth   *jwtauth.JWTAuth
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Claims contains the data used to store a JWT's associated session info
type Claims struct {
	Name         string      `json:"name,omitempty"`
	Email        string      `json:"email,omitempty"`
	Role         *types.Role `json:"role"`
	BackendToken string      `json:"learnify:bt,omitempty"`
	jwt.StandardClaims
}

// NewClaims builds the claims for a freshly authenticated identity
func NewClaims(id string, identity types.Identity, backendToken string, issuedAt time.Time, maxAge time.Duration) *Claims {
	role := identity.Role
	return &Claims{
		Name:         identity.Name,
		Email:        identity.Email,
		Role:         &role,
		BackendToken: backendToken,
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Subject:   string(identity.ID),
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(maxAge).Unix(),
		},
	}
}

// Session extracts the types.Session value from the JWT claims
func (c *Claims) Session() *types.Session {
	session := &types.Session{
		ID:           c.Id,
		Subject:      types.UserID(c.Subject),
		Name:         c.Name,
		Email:        c.Email,
		IssuedAt:     time.Unix(c.IssuedAt, 0).UTC(),
		ExpiresAt:    time.Unix(c.ExpiresAt, 0).UTC(),
		BackendToken: c.BackendToken,
	}
	if c.Role != nil {
		session.Role = *c.Role
	}
	return session
}

// Valid determines if the claims are valid: they must have a subject,
// an expiry that hasn't passed and a role from the enumeration
func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}

	if c.Subject == "" {
		return errors.New("claims cannot have empty subject")
	}
	if c.ExpiresAt == 0 {
		return errors.New("claims must have an expiry")
	}
	if c.Role == nil {
		return errors.New("claims must have a role")
	}
	if !c.Role.Valid() {
		return fmt.Errorf("claims have unknown role %d", int(*c.Role))
	}

	return nil
}

// NewJWTManager creates a new JWTManager for the given secret and token lifetime
func NewJWTManager(secret []byte, maxAge time.Duration) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session signing secret cannot be empty")
	}
	if maxAge <= 0 {
		return nil, errors.New("session lifetime must be positive")
	}

	// Create the instance of the auth used to sign tokens
	tokenAuth := jwtauth.New("HS256", secret, nil)

	return &JWTManager{
		Auth:   tokenAuth,
		secret: secret,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// MaxAge is the lifetime of every issued token
func (m *JWTManager) MaxAge() time.Duration {
	return m.maxAge
}

// IssueJWT creates a new, unsigned JWT for the given identity.
// The role is copied into the token here and never re-derived
func (m *JWTManager) IssueJWT(identity types.Identity, backendToken string) (*jwt.Token, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "generating token id")
	}

	claims := NewClaims(id.String(), identity, backendToken, m.now(), m.maxAge)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims), nil
}

// SignToken signs a JWT using the internal secret
func (m *JWTManager) SignToken(token *jwt.Token) (string, error) {
	_, tokenString, err := m.Auth.Encode(token.Claims)
	if err != nil {
		return "", errors.Wrap(err, "signing session token")
	}

	return tokenString, nil
}

// Decode verifies a signed token and extracts its session.
// Every failure (bad signature, wrong algorithm, expiry, malformed claims)
// is reported as ErrUnauthenticated
func (m *JWTManager) Decode(tokenString string) (*types.Session, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Wrapf(ErrUnauthenticated, "decoding session token: %v", err)
	}
	if !token.Valid {
		return nil, errors.Wrap(ErrUnauthenticated, "session token is not valid")
	}

	return claims.Session(), nil
}
