package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Replicate API root.
const DefaultBaseURL = "https://api.replicate.com/v1"

// Static errors for Replicate client operations.
var (
	// ErrTokenNotSet is returned when no API token is configured.
	ErrTokenNotSet = errors.New("replicate: API token is not set")
	// ErrModelRequired is returned when the model name is not provided.
	ErrModelRequired = errors.New("replicate: model is required")
	// ErrURLRequired is returned when a poll URL is not provided.
	ErrURLRequired = errors.New("replicate: prediction URL is required")
	// ErrNoPredictionID is returned when the create response contains no prediction ID.
	ErrNoPredictionID = errors.New("replicate: create failed: no prediction ID returned")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("replicate: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("replicate: request failed")
)

// APIError is a non-2xx, non-429 response from Replicate.
// Body holds the response body verbatim.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

// RateLimitError is a 429 response from Replicate.
// RetryAfter is zero when the provider sent no hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("replicate: rate limited (retry after %s): %s", e.RetryAfter, e.Body)
	}
	return fmt.Sprintf("replicate: rate limited: %s", e.Body)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Client defines the interface for interacting with the Replicate API.
type Client interface {
	// Configured reports whether an API token is available.
	Configured() bool

	// CreatePrediction starts a prediction on the named model ("owner/name").
	CreatePrediction(ctx context.Context, model string, input any) (Prediction, error)

	// GetPrediction fetches the current state of a prediction from its poll URL.
	GetPrediction(ctx context.Context, url string) (Prediction, error)

	// PredictionURL builds the poll URL for a prediction ID.
	PredictionURL(id string) string
}

// HTTPClient is the HTTP implementation of the Replicate Client interface.
type HTTPClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Replicate API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// NewClient creates a new Replicate HTTP client.
// The token can be set via the WithToken option. If not provided, it is
// read from REPLICATE_API_TOKEN. A missing token is not an error here:
// requests fail with ErrTokenNotSet so the server can start without it.
func NewClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.token == "" {
		c.token = os.Getenv("REPLICATE_API_TOKEN")
	}

	return c
}

// Configured reports whether an API token is available.
func (c *HTTPClient) Configured() bool {
	return c.token != ""
}

// CreatePrediction starts a prediction on the named model.
func (c *HTTPClient) CreatePrediction(ctx context.Context, model string, input any) (Prediction, error) {
	if model == "" {
		return Prediction{}, ErrModelRequired
	}

	bodyBytes, err := json.Marshal(createRequest{Input: input})
	if err != nil {
		return Prediction{}, fmt.Errorf("replicate: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)

	var resp Prediction
	if err := c.doRequest(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return Prediction{}, err
	}

	if resp.ID == "" {
		return Prediction{}, ErrNoPredictionID
	}

	return resp, nil
}

// GetPrediction fetches the current state of a prediction.
func (c *HTTPClient) GetPrediction(ctx context.Context, url string) (Prediction, error) {
	if url == "" {
		return Prediction{}, ErrURLRequired
	}

	var resp Prediction
	if err := c.doRequest(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return Prediction{}, err
	}
	return resp, nil
}

// PredictionURL builds the poll URL for a prediction ID.
func (c *HTTPClient) PredictionURL(id string) string {
	return fmt.Sprintf("%s/predictions/%s", c.baseURL, id)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	if c.token == "" {
		return ErrTokenNotSet
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("replicate: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return &RateLimitError{
				RetryAfter: parseRetryAfter(resp.Header, respBody),
				Body:       string(respBody),
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("replicate: unmarshal response: %w", err)
		}
	}

	return nil
}

// MaxRetryAfter caps the retry hint read from a 429 response.
const MaxRetryAfter = time.Hour

// parseRetryAfter reads the retry hint from a 429 response.
// The JSON body field wins over the Retry-After header. Zero means no hint.
// Hints are capped at MaxRetryAfter.
func parseRetryAfter(header http.Header, body []byte) time.Duration {
	maxSecs := MaxRetryAfter.Seconds()

	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(math.Ceil(min(rl.RetryAfter, maxSecs))) * time.Second
	}

	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			return time.Duration(min(float64(secs), maxSecs)) * time.Second
		}
	}

	return 0
}
