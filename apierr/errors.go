// Package apierr defines the two kinds of failure that can cross the backend
// client boundary: APIError, when the backend answered with a structured
// failure, and GenericError for everything else.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Type is the category of a failure, used by the UI to pick a treatment
type Type string

const (
	// TypeError is a blocking failure
	TypeError Type = "error"
	// TypeWarning is a non-blocking failure the user should see
	TypeWarning Type = "warning"
	// TypeInfo is purely informational
	TypeInfo Type = "info"
)

// Valid reports whether t is one of the known categories
func (t Type) Valid() bool {
	return t == TypeError || t == TypeWarning || t == TypeInfo
}

const (
	// DefaultAPIMessage is used when the backend did not send a usable title
	DefaultAPIMessage = "an error occurred while communicating with the API"
	// DefaultGenericMessage is used for every non-API failure
	DefaultGenericMessage = "an unexpected error occurred"
)

// APIError is a failure reported by the backend with a status code
type APIError struct {
	Message string
	Type    Type
	Status  int
}

// NewAPIError constructs a new APIError,
// filling in the default message, type and status where they are empty
func NewAPIError(message string, errType Type, status int) *APIError {
	if message == "" {
		message = DefaultAPIMessage
	}
	if !errType.Valid() {
		errType = TypeError
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return &APIError{
		Message: message,
		Type:    errType,
		Status:  status,
	}
}

func (e *APIError) Error() string {
	return e.Message
}

// GenericError is the catch-all failure: network errors, malformed payloads,
// serialization failures and the like. The cause is kept for logging only
type GenericError struct {
	Message string
	Type    Type
	Err     error
}

// NewGenericError constructs a new GenericError with the default message
func NewGenericError(cause error) *GenericError {
	return &GenericError{
		Message: DefaultGenericMessage,
		Type:    TypeError,
		Err:     cause,
	}
}

func (e *GenericError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *GenericError) Unwrap() error {
	return e.Err
}

// BuiltError is the structured failure body the backend sends
type BuiltError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
}

// IsBuiltError reports whether v has the shape of a BuiltError:
// an object with a string title. v may be a decoded JSON value or raw JSON bytes
func IsBuiltError(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return false
	case []byte:
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			return false
		}
		return IsBuiltError(decoded)
	case json.RawMessage:
		return IsBuiltError([]byte(value))
	case map[string]interface{}:
		_, ok := value["title"].(string)
		return ok
	case BuiltError:
		return true
	case *BuiltError:
		return value != nil
	default:
		return false
	}
}

// ParseBuiltError decodes a response body into a BuiltError,
// returning false if the body doesn't have the expected shape
func ParseBuiltError(body []byte) (BuiltError, bool) {
	if !IsBuiltError(body) {
		return BuiltError{}, false
	}

	var built BuiltError
	if err := json.Unmarshal(body, &built); err != nil {
		// title was a string but status wasn't a number
		var loose struct {
			Title string `json:"title"`
		}
		if json.Unmarshal(body, &loose) != nil {
			return BuiltError{}, false
		}
		built = BuiltError{Title: loose.Title}
	}
	return built, true
}

// TypeOf returns the category of any error in the taxonomy,
// defaulting to TypeError
func TypeOf(err error) Type {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	var genericErr *GenericError
	if errors.As(err, &genericErr) && genericErr.Type.Valid() {
		return genericErr.Type
	}
	return TypeError
}

// StatusOf returns the status carried by an APIError, or 500
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the message safe to show to a user.
// Causes wrapped by a GenericError are never included
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var genericErr *GenericError
	if errors.As(err, &genericErr) {
		return genericErr.Message
	}
	return DefaultGenericMessage
}
