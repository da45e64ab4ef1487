// Package generation relays image and video generation requests to a hosted
// inference provider. It submits one prediction per request, polls it until
// it reaches a terminal state and resolves the artifact URL.
package generation

import (
	"errors"
	"fmt"
	"time"

	"github.com/maauso/mash-api/internal/replicate"
)

// Mode selects what kind of artifact is generated.
type Mode string

const (
	// ModeImage generates a still image from all reference images.
	ModeImage Mode = "image"
	// ModeVideo generates a short clip from the first reference image.
	ModeVideo Mode = "video"
)

// MaxReferenceImages is the largest number of reference images accepted.
const MaxReferenceImages = 4

// BillingGuidance is appended to rate-limit errors surfaced to users.
const BillingGuidance = "Add $5+ credit to Replicate to remove limits."

// Request is a single generation request.
type Request struct {
	// ReferenceImages are base64 images or data URLs, in upload order.
	ReferenceImages []string `validate:"required,min=1,max=4,dive,required"`
	// Prompt describes what to generate.
	Prompt string `validate:"required"`
	// Mode defaults to ModeImage when empty.
	Mode Mode `validate:"omitempty,oneof=image video"`
}

// Result is the outcome of a successful generation.
type Result struct {
	// OutputURL is where the artifact can be fetched.
	OutputURL string
	// Type is the artifact kind.
	Type Mode
	// PredictionID is the provider job ID.
	PredictionID string
	// SourceURL is the provider URL when OutputURL points to an archived copy.
	SourceURL string
}

// Static errors for generation.
var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("generation: invalid request")
	// ErrMissingCredential is returned when no provider API token is configured.
	ErrMissingCredential = errors.New("generation: REPLICATE_API_TOKEN is not configured")
	// ErrRateLimited is wrapped by RateLimitedError.
	ErrRateLimited = errors.New("generation: rate limited")
	// ErrPollFailed is returned when a status poll gets a non-2xx response.
	ErrPollFailed = errors.New("generation: failed to poll prediction")
	// ErrGenerationFailed is wrapped by FailedError.
	ErrGenerationFailed = errors.New("generation: prediction did not succeed")
	// ErrTimeoutExhausted is returned when polling ends without a terminal status.
	ErrTimeoutExhausted = errors.New("generation: poll attempts exhausted")
)

// ValidationError describes why a request was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RateLimitedError is returned when the provider rate limited both the
// original submission and its single retry.
type RateLimitedError struct {
	// RetryAfter is the provider hint from the last response, or the default.
	RetryAfter time.Duration
	// Err is the provider error from the last attempt.
	Err error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() []error {
	return []error{ErrRateLimited, e.Err}
}

// Details returns the user-facing guidance for this error.
func (e *RateLimitedError) Details() string {
	return fmt.Sprintf("Try again in %d seconds. %s", e.Seconds(), BillingGuidance)
}

// Seconds returns RetryAfter rounded up to whole seconds.
func (e *RateLimitedError) Seconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// FailedError is returned when the provider reports a failed or canceled
// prediction, or a success without output.
type FailedError struct {
	PredictionID string
	Status       replicate.Status
	Detail       string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s: prediction %s %s: %s", ErrGenerationFailed, e.PredictionID, e.Status, e.Detail)
}

func (e *FailedError) Unwrap() error {
	return ErrGenerationFailed
}
