package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorBody is the JSON error payload written by the middleware and the API.
// Code is a snake_case identifier.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "invalid_request",
	http.StatusUnauthorized:          "unauthorized",
	http.StatusNotFound:              "not_found",
	http.StatusMethodNotAllowed:      "method_not_allowed",
	http.StatusConflict:              "conflict",
	http.StatusRequestEntityTooLarge: "request_too_large",
	http.StatusInternalServerError:   "internal_error",
	http.StatusBadGateway:            "bad_gateway",
}

var codeReplacer = strings.NewReplacer(" ", "_", "-", "_", "'", "")

// ErrorCode returns the error code used for a status when no more specific
// code applies.
func ErrorCode(statusCode int) string {
	if code, ok := statusCodes[statusCode]; ok {
		return code
	}
	if text := http.StatusText(statusCode); text != "" {
		return codeReplacer.Replace(strings.ToLower(text))
	}
	return "error"
}

// OapiErrorHandler writes request validation and authentication failures
// from nethttp-middleware as an ErrorBody.
func OapiErrorHandler(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorBody{
		Code:    ErrorCode(statusCode),
		Message: message,
	})
}
