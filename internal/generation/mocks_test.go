package generation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/mash-api/internal/replicate"
)

// mockClient implements replicate.Client for testing.
type mockClient struct {
	mock.Mock
	unconfigured bool
}

func (m *mockClient) Configured() bool {
	return !m.unconfigured
}

func (m *mockClient) CreatePrediction(ctx context.Context, model string, input any) (replicate.Prediction, error) {
	args := m.Called(ctx, model, input)
	return args.Get(0).(replicate.Prediction), args.Error(1)
}

func (m *mockClient) GetPrediction(ctx context.Context, url string) (replicate.Prediction, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(replicate.Prediction), args.Error(1)
}

func (m *mockClient) PredictionURL(id string) string {
	args := m.Called(id)
	return args.String(0)
}

// mockArchiver implements Archiver for testing.
type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Archive(ctx context.Context, sourceURL, kind string) (string, error) {
	args := m.Called(ctx, sourceURL, kind)
	return args.String(0), args.Error(1)
}

// sleepRecorder records requested waits without blocking.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func prediction(id string, status replicate.Status, output string) replicate.Prediction {
	p := replicate.Prediction{
		ID:     id,
		Status: status,
		URLs:   replicate.URLs{Get: "https://api.test/predictions/" + id},
	}
	if output != "" {
		p.Output = json.RawMessage(output)
	}
	return p
}
