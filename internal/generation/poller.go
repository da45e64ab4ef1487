package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/mash-api/internal/replicate"
)

// PollConfig bounds the poll loop.
type PollConfig struct {
	// Interval is the wait before each poll.
	Interval time.Duration
	// MaxAttempts is the number of polls before giving up.
	MaxAttempts int
}

// DefaultImagePollConfig allows about three minutes.
func DefaultImagePollConfig() PollConfig {
	return PollConfig{Interval: time.Second, MaxAttempts: 180}
}

// DefaultVideoPollConfig allows about five minutes.
func DefaultVideoPollConfig() PollConfig {
	return PollConfig{Interval: time.Second, MaxAttempts: 300}
}

// Poller fetches prediction status until it is terminal.
type Poller struct {
	client replicate.Client
	sleep  sleepFunc
	logger *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(client replicate.Client, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client: client,
		sleep:  sleepContext,
		logger: logger,
	}
}

// Poll waits cfg.Interval, fetches the prediction and repeats until the
// status is terminal or cfg.MaxAttempts polls were made. It returns the last
// status seen, which is non-terminal when the attempts ran out. A non-2xx
// poll aborts the loop with ErrPollFailed.
func (p *Poller) Poll(ctx context.Context, created replicate.Prediction, cfg PollConfig) (replicate.Prediction, error) {
	current := created

	for attempt := 0; !current.Status.IsTerminal() && attempt < cfg.MaxAttempts; attempt++ {
		if err := p.sleep(ctx, cfg.Interval); err != nil {
			return current, fmt.Errorf("generation: poll interrupted: %w", err)
		}

		url := current.URLs.Get
		if url == "" {
			url = p.client.PredictionURL(created.ID)
		}

		next, err := p.client.GetPrediction(ctx, url)
		if err != nil {
			return current, fmt.Errorf("%w: %w", ErrPollFailed, err)
		}
		current = next

		p.logger.Debug("polled prediction",
			slog.String("prediction_id", created.ID),
			slog.String("status", string(current.Status)),
			slog.Int("attempt", attempt+1),
		)
	}

	return current, nil
}
