// Package apierror provides the error envelopes returned by the API.
// Every 4xx/5xx body goes through here so internals (stack traces, SQL
// errors) never reach a client.
package apierror

// APIError is the canonical error envelope. Code names the error kind
// (insufficient_stock, invalid_state, ...) for clients that branch on it.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// ValidationError lists the failing field and rule of each invalid field.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: "validation_failed", Detail: "validation failed", Fields: fields}
}
