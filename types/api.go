package types

import "time"

// ErrorResponse is the generic error JSON shape returned by the API.
// Type tells the UI how to present the failure
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Type    string `json:"type"`
}

// SessionState is the position of a client in the sign-in state machine
type SessionState int

const (
	// SessionNone means no valid session token was presented
	SessionNone SessionState = iota
	// SessionPending means credentials were submitted and are being checked
	SessionPending
	// SessionAuthenticated means a valid, signed session token was presented
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// Session is the JSON shape that is used to track authenticated sessions.
// It is decoded from the signed session token on every request
type Session struct {
	ID        string    `json:"id"`
	Subject   UserID    `json:"subject"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// BackendToken is the bearer token issued by the backend at login, if any.
	// It is forwarded on backend calls made on behalf of this session
	BackendToken string `json:"-"`
}
