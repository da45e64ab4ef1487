package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/mash-api/internal/generation"
	"github.com/maauso/mash-api/internal/replicate"
)

// DefaultMaxBodyBytes bounds the relay request body.
const DefaultMaxBodyBytes int64 = 50 << 20

// WriteSlack is the time left to write the response once a generation
// has used its whole timeout.
const WriteSlack = 30 * time.Second

// Generator runs a generation request to completion.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Result, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator         Generator
	logger            *slog.Logger
	maxBodyBytes      int64
	generationTimeout time.Duration
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxBodyBytes overrides the request body limit for the relay endpoint.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithGenerationTimeout bounds each relay request. The response write
// deadline is pushed out to cover it.
func WithGenerationTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		h.generationTimeout = d
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(generator Generator, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		generator:    generator,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// MethodNotAllowed answers every non-POST request to the relay endpoint.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed", CodeMethodNotAllowed)
}

// Generate handles POST /api/generate requests.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("request_id", RequestIDFromContext(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("request body too large", slog.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", CodeBodyTooLarge)
			return
		}
		logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", CodeInvalidJSON)
		return
	}

	ctx := r.Context()
	if h.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.generationTimeout)
		defer cancel()

		deadline := time.Now().Add(h.generationTimeout + WriteSlack)
		if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
			logger.Debug("write deadline not extended", slog.String("error", err.Error()))
		}
	}

	mode := generation.Mode(req.Mode)
	result, err := h.generator.Generate(ctx, generation.Request{
		ReferenceImages: req.ReferenceImages,
		Prompt:          req.Prompt,
		Mode:            mode,
	})
	if err != nil {
		h.writeGenerateError(w, logger, mode, err)
		return
	}

	logger.Info("generation completed",
		slog.String("type", string(result.Type)),
		slog.String("prediction_id", result.PredictionID),
	)

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success: true,
		Output:  result.OutputURL,
		Type:    string(result.Type),
	})
}

// writeGenerateError maps generation errors onto HTTP responses.
func (h *Handlers) writeGenerateError(w http.ResponseWriter, logger *slog.Logger, mode generation.Mode, err error) {
	noun := "image"
	label := "Image"
	if mode == generation.ModeVideo {
		noun, label = "video", "Video"
	}

	var (
		validationErr *generation.ValidationError
		rateLimitErr  *generation.RateLimitedError
		apiErr        *replicate.APIError
		failedErr     *generation.FailedError
	)

	switch {
	case errors.As(err, &validationErr):
		logger.Warn("request validation failed", slog.String("error", validationErr.Message))
		writeError(w, http.StatusBadRequest, validationErr.Message, CodeValidation)

	case errors.Is(err, generation.ErrMissingCredential):
		logger.Error("provider credential missing")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "REPLICATE_API_TOKEN not configured",
			Details: "Set REPLICATE_API_TOKEN in the environment or .env.local",
			Code:    CodeMissingCredential,
		})

	case errors.As(err, &rateLimitErr):
		logger.Warn("rate limited after retry", slog.Duration("retry_after", rateLimitErr.RetryAfter))
		secs := rateLimitErr.Seconds()
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:      "Rate limited - please wait and try again",
			Details:    rateLimitErr.Details(),
			RetryAfter: &secs,
			Code:       CodeRateLimited,
		})

	case errors.Is(err, generation.ErrTimeoutExhausted), errors.Is(err, context.DeadlineExceeded):
		logger.Error("prediction timed out", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   label + " generation failed",
			Details: fmt.Sprintf("The %s was not ready in time. Please try again.", noun),
			Code:    CodeTimeout,
		})

	case errors.Is(err, generation.ErrPollFailed):
		logger.Error("poll failed", slog.String("error", err.Error()))
		details := err.Error()
		if errors.As(err, &apiErr) {
			details = apiErr.Body
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to poll prediction",
			Details: details,
			Code:    CodePollFailed,
		})

	case errors.As(err, &apiErr):
		logger.Error("provider rejected submission",
			slog.Int("status", apiErr.StatusCode),
			slog.String("body", apiErr.Body),
		)
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, ErrorResponse{
			Error:   "Replicate API error",
			Details: apiErr.Body,
			Code:    CodeProviderError,
		})

	case errors.As(err, &failedErr):
		logger.Error("prediction failed",
			slog.String("prediction_id", failedErr.PredictionID),
			slog.String("status", string(failedErr.Status)),
			slog.String("detail", failedErr.Detail),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   label + " generation failed",
			Details: failedErr.Detail,
			Code:    CodeGenerationFailed,
		})

	case errors.Is(err, context.Canceled):
		logger.Warn("generation cancelled", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Request cancelled",
			Details: "The server stopped the " + noun + " generation. Please try again.",
			Code:    CodeCancelled,
		})

	default:
		logger.Error("generation error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to generate " + noun,
			Details: err.Error(),
			Code:    CodeInternal,
		})
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
