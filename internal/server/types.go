// Package server provides the HTTP relay for the MASH API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// GenerateRequest is the HTTP request body for a generation.
type GenerateRequest struct {
	// ReferenceImages are base64 images or data URLs, one to four.
	ReferenceImages []string `json:"referenceImages"`
	// Prompt describes what to generate.
	Prompt string `json:"prompt"`
	// Mode is "image" (default) or "video".
	Mode string `json:"mode,omitempty"`
}

// GenerateResponse is the HTTP response for a successful generation.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Type    string `json:"type"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Details carries the provider message or retry guidance.
	Details string `json:"details,omitempty"`
	// RetryAfter is set on rate-limit errors, in seconds.
	RetryAfter *int `json:"retryAfter,omitempty"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidJSON       = "INVALID_JSON"
	CodeBodyTooLarge      = "BODY_TOO_LARGE"
	CodeValidation        = "VALIDATION_ERROR"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeRateLimited       = "RATE_LIMITED"
	CodeProviderError     = "PROVIDER_ERROR"
	CodePollFailed        = "POLL_FAILED"
	CodeGenerationFailed  = "GENERATION_FAILED"
	CodeTimeout           = "GENERATION_TIMEOUT"
	CodeCancelled         = "REQUEST_CANCELLED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
)
