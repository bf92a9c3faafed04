// Package apierrors defines the closed error taxonomy of the API.
//
// Every error carries the canonical HTTP status code and a user-visible
// message. Anything outside this taxonomy is coerced to a generic 500 by
// the REST layer; raw error messages are never surfaced to callers.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a typed request-processing failure.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

func (e *APIError) WithCause(cause error) *APIError {
	e.Cause = cause
	return e
}

// As unwraps err into an *APIError if it belongs to the taxonomy.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func NewInvalidQueryParameter(name, operator, value string, options []string) *APIError {
	return &APIError{
		Code:       "INVALID_QUERY_PARAMETER",
		StatusCode: http.StatusUnprocessableEntity,
		Message: fmt.Sprintf(
			"Query parameter '%s' (%s %s %s) is invalid. Did you mean '%s'?",
			name, name, operator, value, ClosestMatch(name, options),
		),
	}
}

func NewExceedsMaxParameters(maxParams, currentTotal int, parameters []string) *APIError {
	quoted := make([]string, len(parameters))
	for i, p := range parameters {
		quoted[i] = "'" + p + "'"
	}
	return &APIError{
		Code:       "EXCEEDS_MAX_PARAMETERS",
		StatusCode: http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf(
			"Number of query parameters exceed the maximum of %d allowed. "+
				"Current query includes %d parameters: [%s]",
			maxParams, currentTotal, strings.Join(quoted, ", "),
		),
	}
}

func NewInvalidStructureParameter(name, structureFormat string, options []string) *APIError {
	return &APIError{
		Code:       "INVALID_STRUCTURE_PARAMETER",
		StatusCode: http.StatusNotFound,
		Message: fmt.Sprintf(
			"Invalid parameter '%s' in the requested %s structure. Did you mean '%s'?",
			name, structureFormat, ClosestMatch(name, options),
		),
	}
}

func NewIncorrectQueryValueType(expression, expectation, actual string) *APIError {
	return &APIError{
		Code:       "INCORRECT_QUERY_VALUE_TYPE",
		StatusCode: http.StatusNotAcceptable,
		Message: fmt.Sprintf(
			"The value in query expression '%s' is invalid. Expected a %s value, "+
				"got '%s' instead. See the API documentations for additional information.",
			expression, expectation, actual,
		),
	}
}

func NewValueNotAcceptable(expression, key, pattern string) *APIError {
	return &APIError{
		Code:       "VALUE_NOT_ACCEPTABLE",
		StatusCode: http.StatusExpectationFailed,
		Message: fmt.Sprintf(
			"The value in query expression '%s' does not match the expected pattern. "+
				"The value for this '%s' must match the regular expression pattern '%s'. "+
				"See the API documentations for additional information.",
			expression, key, pattern,
		),
	}
}

func NewInvalidStructure() *APIError {
	return &APIError{
		Code:       "INVALID_STRUCTURE",
		StatusCode: http.StatusExpectationFailed,
		Message: "Invalid structure. The structure must be a flat (non-nested) JSON object. " +
			"Make sure you use double quotation marks in the structure.",
	}
}

func NewStructureTooLarge(maxAllowed, currentCount int) *APIError {
	return &APIError{
		Code:       "STRUCTURE_TOO_LARGE",
		StatusCode: http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf(
			"You may only request a maximum number of %d metrics per request. "+
				"Current number of metrics in your structure: %d - please reduce "+
				"the number of metrics and try again.",
			maxAllowed, currentCount,
		),
	}
}

func NewInvalidQuery() *APIError {
	return &APIError{
		Code:       "INVALID_QUERY",
		StatusCode: http.StatusPreconditionFailed,
		Message: "Invalid Query: the query is either empty or does not conform to the correct " +
			"pattern. See the API documentations for additional information.",
	}
}

func NewRequestTooLarge(allowedMax int, paramName string) *APIError {
	return &APIError{
		Code:       "REQUEST_TOO_LARGE",
		StatusCode: http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf(
			"You may only include %d %s per request. Please see the API "+
				"documentations for additional information.",
			allowedMax, paramName,
		),
	}
}

func NewNotAvailable() *APIError {
	return &APIError{
		Code:       "NOT_AVAILABLE",
		StatusCode: http.StatusNoContent,
		Message:    "The request was fulfilled. There is currently no data available.",
	}
}

func NewUnauthorisedRequest(name, operator, value string) *APIError {
	return &APIError{
		Code:       "UNAUTHORISED_REQUEST",
		StatusCode: http.StatusUnauthorized,
		Message: fmt.Sprintf(
			"Request for unauthorised access to value '%s' (%s %s %s) is denied.",
			value, name, operator, value,
		),
	}
}

func NewInvalidFormat() *APIError {
	return &APIError{
		Code:       "INVALID_FORMAT",
		StatusCode: http.StatusBadRequest,
		Message: "Invalid format: 'latestBy' parameter can only be used " +
			"when 'format=json' or 'format=xml'.",
	}
}

func NewBadPagination() *APIError {
	return &APIError{
		Code:       "BAD_PAGINATION",
		StatusCode: http.StatusBadRequest,
		Message: "Bad pagination: 'latestBy' parameter cannot be used in conjunction with " +
			"the 'page' parameter.",
	}
}

func NewMissingFilter() *APIError {
	return &APIError{
		Code:       "MISSING_FILTER",
		StatusCode: http.StatusBadRequest,
		Message:    "Missing filter: The 'areaType' filter is mandatory, but not defined.",
	}
}
