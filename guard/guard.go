// Package guard decides, for every navigable request, whether the
// presented session may see the requested page.
package guard

import (
	"fmt"
	"path"
	"strings"

	"github.com/learnify/learnify-gateway/types"
)

// Decision is the outcome of evaluating a request against the route table
type Decision int

const (
	// Allow lets the request through
	Allow Decision = iota
	// RedirectRoot sends a client without a valid session to the root route
	RedirectRoot
	// RedirectUnauthorized sends an under-privileged session to the unauthorized route
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case RedirectRoot:
		return "redirect_root"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "allow"
	}
}

// Routes is the route classification consumed by the guard
type Routes struct {
	// Public paths are always allowed
	Public []string
	// Root is where clients without a session are sent
	Root string
	// Unauthorized is where sessions holding RestrictedRole are sent
	// when they request the Restricted path
	Unauthorized string
	// Restricted is the path denied to RestrictedRole
	Restricted     string
	RestrictedRole types.Role
}

// Validate rejects route tables that would send a client into a redirect loop
func (r Routes) Validate() error {
	for _, route := range append([]string{r.Root, r.Unauthorized, r.Restricted}, r.Public...) {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("route '%s' must be an absolute path", route)
		}
	}
	if !r.isPublic(r.Root) {
		return fmt.Errorf("root route '%s' must be public", r.Root)
	}
	if Normalize(r.Unauthorized) == Normalize(r.Restricted) {
		return fmt.Errorf("unauthorized route cannot be the restricted route '%s'", r.Restricted)
	}
	return nil
}

// Decide evaluates the route table in order:
// public paths are allowed, requests without a session go to Root,
// RestrictedRole on the Restricted path goes to Unauthorized,
// and everything else is allowed
func (r Routes) Decide(session *types.Session, requestPath string) Decision {
	p := Normalize(requestPath)

	if r.isPublic(p) {
		return Allow
	}
	if session == nil {
		return RedirectRoot
	}
	if p == Normalize(r.Restricted) && session.Role == r.RestrictedRole {
		return RedirectUnauthorized
	}
	return Allow
}

// Target returns the path a decision redirects to, or "" for Allow
func (r Routes) Target(d Decision) string {
	switch d {
	case RedirectRoot:
		return r.Root
	case RedirectUnauthorized:
		return r.Unauthorized
	default:
		return ""
	}
}

func (r Routes) isPublic(p string) bool {
	p = Normalize(p)
	for _, route := range r.Public {
		if Normalize(route) == p {
			return true
		}
	}
	return false
}

// Normalize cleans a request path so that "/settings/", "//settings"
// and "/a/../settings" are all compared as "/settings"
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
