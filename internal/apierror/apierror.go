// Package apierror holds the {detail} body of every 4xx/5xx response.
package apierror

// APIError carries one human-readable message.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError is the 422 body: one message per offending field, keyed by
// its JSON or query name.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
