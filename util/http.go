package util

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/learnify/learnify-gateway/apierr"
	"github.com/learnify/learnify-gateway/types"
)

// ResponseCodeFromError resolves a status code from an error
func ResponseCodeFromError(err error) int {
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// Error creates a standardized error response
func Error(w http.ResponseWriter, r *http.Request, originalError error) {
	ErrorWithCode(w, r, originalError, ResponseCodeFromError(originalError))
}

// ErrorWithCode creates a standardized error response with a status code.
// Messages of GenericErrors and of unclassified server errors are replaced
// by the generic message
func ErrorWithCode(w http.ResponseWriter, r *http.Request, originalError error, statusCode int) {
	response := types.ErrorResponse{
		Message: messageFor(originalError, statusCode),
		Status:  statusCode,
		Type:    string(apierr.TypeOf(originalError)),
	}

	render.Status(r, statusCode)
	render.JSON(w, r, response)
}

func messageFor(err error, statusCode int) string {
	var apiErr *apierr.APIError
	var genericErr *apierr.GenericError
	if errors.As(err, &apiErr) || errors.As(err, &genericErr) {
		return apierr.MessageOf(err)
	}
	if statusCode >= http.StatusInternalServerError {
		return apierr.DefaultGenericMessage
	}
	return fmt.Sprint(err)
}
