package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the coarse privilege flag carried by a session
type Role int

const (
	// RoleAdmin has access to every page
	RoleAdmin Role = 0
	// RoleStudent is kept out of the restricted settings page
	RoleStudent Role = 1
	// RoleInstructor manages courses
	RoleInstructor Role = 2
)

// Roles lists every value of the role enumeration
var Roles = []Role{RoleAdmin, RoleStudent, RoleInstructor}

// Valid reports whether r is part of the role enumeration
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStudent:
		return "student"
	case RoleInstructor:
		return "instructor"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// UserID is an opaque user identifier.
// The backend may send it as a JSON string or a JSON number
type UserID string

// UnmarshalJSON accepts both string and numeric identifiers
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or a number: %s", data)
	}
	*id = UserID(n.String())
	return nil
}

// Identity is the authenticated principal returned by the backend at login
type Identity struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
