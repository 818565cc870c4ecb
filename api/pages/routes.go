// Package pages serves placeholder documents for the front-end page routes.
// The route guard runs in front of every one of them
package pages

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/learnify/learnify-gateway/auth"
)

// Page is a placeholder front-end page
type Page struct {
	Path  string
	Title string
	Body  string
}

// Pages lists the page routes served by the gateway
var Pages = []Page{
	{Path: "/", Title: "Learnify", Body: "Your courses will appear here."},
	{Path: "/login", Title: "Sign in", Body: "Submit your document and password to /api/auth/login."},
	{Path: "/register", Title: "Create an account", Body: "Registration is handled by the backend."},
	{Path: "/settings", Title: "Settings", Body: "Account settings."},
	{Path: "/unauthorized", Title: "Unauthorized", Body: "You do not have access to that page."},
}

// Routes creates a new Chi router with every placeholder page
func Routes(version string) *chi.Mux {
	router := chi.NewRouter()
	for _, page := range Pages {
		router.Get(page.Path, Render(page, version))
	}
	return router
}

// Render writes a page, greeting the signed-in user if there is one
func Render(page Page, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		greeting := ""
		if session, ok := auth.SessionFromContext(r.Context()); ok {
			name := session.Name
			if name == "" {
				name = string(session.Subject)
			}
			greeting = fmt.Sprintf(`<p>Signed in as %s (%s). <a href="/api/auth/logout">Sign out</a></p>`,
				html.EscapeString(name), session.Role)
		}

		render.HTML(w, r, fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
%s
<p>%s</p>
<footer>learnify %s</footer>
</body>
</html>
`, html.EscapeString(page.Title), html.EscapeString(page.Title), greeting,
			html.EscapeString(page.Body), html.EscapeString(version)))
	}
}
