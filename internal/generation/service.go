package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/mash-api/internal/replicate"
)

// Archiver keeps a durable copy of a generated artifact and returns its URL.
type Archiver interface {
	Archive(ctx context.Context, sourceURL, kind string) (string, error)
}

// Config holds the generation settings.
type Config struct {
	Models    Models
	Retry     RetryConfig
	ImagePoll PollConfig
	VideoPoll PollConfig
}

// DefaultConfig returns the settings used in production.
func DefaultConfig() Config {
	return Config{
		Models:    DefaultModels(),
		Retry:     DefaultRetryConfig(),
		ImagePoll: DefaultImagePollConfig(),
		VideoPoll: DefaultVideoPollConfig(),
	}
}

// Service runs one generation request start to finish: validate, submit,
// poll, resolve and optionally archive.
type Service struct {
	client    replicate.Client
	submitter *Submitter
	poller    *Poller
	archiver  Archiver
	validator *validator.Validate
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithArchiver stores every successful artifact through a.
func WithArchiver(a Archiver) Option {
	return func(s *Service) {
		s.archiver = a
	}
}

// WithSleep replaces the wait used between polls and before the rate-limit
// retry.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		s.submitter.sleep = fn
		s.poller.sleep = fn
	}
}

// NewService creates a Service.
func NewService(client replicate.Client, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:    client,
		submitter: NewSubmitter(client, cfg.Models, cfg.Retry, logger),
		poller:    NewPoller(client, logger),
		validator: validator.New(),
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate relays req to the provider and waits for the artifact.
// Validation and credential errors are returned before any outbound call.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	req = normalize(req)
	if err := s.validate(req); err != nil {
		return Result{}, err
	}

	if !s.client.Configured() {
		return Result{}, ErrMissingCredential
	}

	start := time.Now()
	logger := s.logger.With(slog.String("mode", string(req.Mode)))

	logger.Info("submitting prediction",
		slog.Int("reference_images", len(req.ReferenceImages)),
	)

	created, err := s.submitter.Submit(ctx, req)
	if err != nil {
		logger.Error("submit failed", slog.String("error", err.Error()))
		return Result{}, err
	}

	logger = logger.With(slog.String("prediction_id", created.ID))
	logger.Info("prediction created", slog.String("status", string(created.Status)))

	final, err := s.poller.Poll(ctx, created, s.pollConfig(req.Mode))
	if err != nil {
		logger.Error("poll failed", slog.String("error", err.Error()))
		return Result{}, err
	}

	result, err := resolve(final, req.Mode)
	if err != nil {
		logger.Error("prediction did not succeed",
			slog.String("status", string(final.Status)),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	if s.archiver != nil {
		archived, err := s.archiver.Archive(ctx, result.OutputURL, string(result.Type))
		if err != nil {
			logger.Warn("archive failed, returning provider URL", slog.String("error", err.Error()))
		} else {
			result.SourceURL = result.OutputURL
			result.OutputURL = archived
		}
	}

	logger.Info("prediction succeeded",
		slog.String("output", result.OutputURL),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (s *Service) pollConfig(mode Mode) PollConfig {
	if mode == ModeVideo {
		return s.cfg.VideoPoll
	}
	return s.cfg.ImagePoll
}

func normalize(req Request) Request {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Mode == "" {
		req.Mode = ModeImage
	}
	return req
}

func (s *Service) validate(req Request) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	return &ValidationError{Message: validationMessage(fieldErrs[0])}
}

func validationMessage(fe validator.FieldError) string {
	field := fe.StructField()
	switch {
	case field == "ReferenceImages" && fe.Tag() == "max":
		return fmt.Sprintf("At most %d reference images are allowed", MaxReferenceImages)
	case field == "ReferenceImages":
		return "At least one reference image is required"
	case strings.HasPrefix(field, "ReferenceImages["):
		return "Reference images must not be empty"
	case field == "Prompt":
		return "Prompt is required"
	case field == "Mode":
		return `Mode must be "image" or "video"`
	default:
		return fe.Error()
	}
}
