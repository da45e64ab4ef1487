// Package replicate provides an HTTP client for the Replicate predictions API.
package replicate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Status represents the status of a Replicate prediction.
type Status string

// Prediction statuses as reported by the Replicate API.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// ErrUnexpectedOutput is returned when a prediction output is neither a
// string nor a list of strings.
var ErrUnexpectedOutput = errors.New("replicate: unexpected output format")

// Prediction is a job as tracked by Replicate.
type Prediction struct {
	ID     string          `json:"id"`
	Model  string          `json:"model,omitempty"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
	Logs   string          `json:"logs,omitempty"`
	URLs   URLs            `json:"urls"`
}

// URLs holds the provider-supplied endpoints for a prediction.
type URLs struct {
	Get    string `json:"get,omitempty"`
	Cancel string `json:"cancel,omitempty"`
	Stream string `json:"stream,omitempty"`
}

// OutputURLs returns the prediction output as a list of URLs.
// Models return either a single URL or a list of them; a missing or null
// output yields an empty list.
func (p Prediction) OutputURLs() ([]string, error) {
	if isNull(p.Output) {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(p.Output, &many); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedOutput, string(p.Output))
	}
	return many, nil
}

// ErrorDetail returns the provider error as text.
// Replicate usually sends a plain string, but structured errors are
// returned verbatim.
func (p Prediction) ErrorDetail() string {
	if isNull(p.Error) {
		return ""
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err == nil {
		return msg
	}
	return string(p.Error)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// createRequest represents the request body for the predictions endpoint.
type createRequest struct {
	Input any `json:"input"`
}

// rateLimitResponse is the body Replicate sends with a 429.
type rateLimitResponse struct {
	Detail     string  `json:"detail,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}
