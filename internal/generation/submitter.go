package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/mash-api/internal/replicate"
)

// Models names the provider model used for each mode ("owner/name").
type Models struct {
	Image string
	Video string
}

// DefaultModels returns the models used when none are configured.
func DefaultModels() Models {
	return Models{
		Image: "bytedance/seedream-4",
		Video: "wan-video/wan-2.2-i2v-fast",
	}
}

// RetryConfig controls the single retry after a rate-limited submission.
type RetryConfig struct {
	// DefaultRetryAfter is used when the provider sends no hint.
	DefaultRetryAfter time.Duration
	// Padding is added to the hint before resubmitting.
	Padding time.Duration
	// MaxWait caps the hint used for the retry wait. Zero means no cap.
	MaxWait time.Duration
}

// DefaultRetryConfig waits hint+1s, with a 3s hint when none is given and
// hints above a minute capped.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		DefaultRetryAfter: 3 * time.Second,
		Padding:           1 * time.Second,
		MaxWait:           time.Minute,
	}
}

// sleepFunc blocks for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Submitter builds the provider payload for a request and creates the
// prediction, retrying once when rate limited.
type Submitter struct {
	client replicate.Client
	models Models
	retry  RetryConfig
	sleep  sleepFunc
	logger *slog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client replicate.Client, models Models, retry RetryConfig, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		client: client,
		models: models,
		retry:  retry,
		sleep:  sleepContext,
		logger: logger,
	}
}

// Submit creates a prediction for req. The request must already be validated.
func (s *Submitter) Submit(ctx context.Context, req Request) (replicate.Prediction, error) {
	model, input := s.payload(req)
	return submitWithRetry(ctx, s.client, model, input, s.retry, s.sleep, s.logger)
}

func (s *Submitter) payload(req Request) (string, any) {
	if req.Mode == ModeVideo {
		return s.models.Video, newVideoInput(req)
	}
	return s.models.Image, newImageInput(req)
}

// submitWithRetry creates a prediction. On a 429 it waits for the provider
// hint plus padding and resubmits exactly once.
func submitWithRetry(
	ctx context.Context,
	client replicate.Client,
	model string,
	input any,
	cfg RetryConfig,
	sleep sleepFunc,
	logger *slog.Logger,
) (replicate.Prediction, error) {
	pred, err := client.CreatePrediction(ctx, model, input)

	var rl *replicate.RateLimitError
	if !errors.As(err, &rl) {
		return pred, err
	}

	wait := retryAfter(rl, cfg)
	if cfg.MaxWait > 0 {
		wait = min(wait, cfg.MaxWait)
	}
	wait += cfg.Padding
	logger.Warn("prediction rate limited, retrying once",
		slog.String("model", model),
		slog.Duration("wait", wait),
	)

	if err := sleep(ctx, wait); err != nil {
		return replicate.Prediction{}, err
	}

	pred, err = client.CreatePrediction(ctx, model, input)
	if errors.As(err, &rl) {
		return replicate.Prediction{}, &RateLimitedError{
			RetryAfter: retryAfter(rl, cfg),
			Err:        err,
		}
	}
	return pred, err
}

func retryAfter(rl *replicate.RateLimitError, cfg RetryConfig) time.Duration {
	if rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	return cfg.DefaultRetryAfter
}
