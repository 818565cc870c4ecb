// Package backend relays calls from the browser to the backend API,
// authorized with the backend token of the caller's session
package backend

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/learnify/learnify-gateway/apierr"
	"github.com/learnify/learnify-gateway/auth"
	"github.com/learnify/learnify-gateway/backend"
	"github.com/learnify/learnify-gateway/util"
)

// maxRequestBody caps the size of relayed request bodies
const maxRequestBody = 1 << 20

// Routes creates a new Chi router that relays every verb under it to the
// backend API. The parent router must run manager.Attach
func Routes(client *backend.Client, manager *auth.Manager, logger zerolog.Logger) *chi.Mux {
	authorized := client.Authorized(manager.TokenSupplier())
	router := chi.NewRouter()

	relay := Relay(authorized, logger)
	router.Get("/*", relay)
	router.Post("/*", relay)
	router.Put("/*", relay)
	router.Patch("/*", relay)
	router.Delete("/*", relay)

	return router
}

// Relay forwards the request to the same path on the backend API
// and renders the decoded response or the error taxonomy
func Relay(client *backend.Client, logger zerolog.Logger) http.HandlerFunc {
	// Use a closure to inject dependencies
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.SessionFromContext(r.Context()); !ok {
			util.ErrorWithCode(w, r, auth.ErrUnauthenticated, http.StatusUnauthorized)
			return
		}

		path := "/" + chi.URLParam(r, "*")
		if path == "/" {
			util.ErrorWithCode(w, r, errors.New("a backend path is required"), http.StatusNotFound)
			return
		}
		// chi routes on the raw path, so encoded dot segments reach this point
		decoded, err := url.PathUnescape(path)
		if err != nil || backend.HasDotSegment(decoded) {
			util.ErrorWithCode(w, r, errors.New("invalid backend path"), http.StatusBadRequest)
			return
		}

		body, err := readBody(w, r)
		if err != nil {
			util.ErrorWithCode(w, r, err, http.StatusBadRequest)
			return
		}

		var out json.RawMessage
		err = client.Do(r.Context(), r.Method, path, body, &out, backend.Query(r.URL.Query()))
		if err != nil {
			logger.Debug().Err(err).Str("method", r.Method).Str("path", path).Msg("relayed backend call failed")
			util.ErrorWithCode(w, r, err, relayFailureCode(err))
			return
		}

		if len(out) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	}
}

// readBody returns the JSON body of the request, or nil when there is none
func readBody(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodDelete {
		return nil, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if render.GetRequestContentType(r) != render.ContentTypeJSON || !json.Valid(data) {
		return nil, errors.New("request body must be JSON")
	}
	return json.RawMessage(data), nil
}

// relayFailureCode is the status of an APIError, or 502 when the
// backend could not be reached or answered unusably
func relayFailureCode(err error) int {
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
