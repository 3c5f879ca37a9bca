package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/realtime"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage names the pipeline step a generation attempt failed in. The spend
// stage is the pipeline's one atomic guard: nothing irreversible happens
// before it, and nothing after it is compensated automatically.
type Stage string

const (
	StagePrecondition Stage = "precondition"
	StageSpend        Stage = "spend"
	StageUploadVideo  Stage = "upload_video"
	StageUploadImage  Stage = "upload_image"
	StageWebhook      Stage = "webhook"
	StageRecord       Stage = "record"
)

var (
	// ErrMissingInputs is returned when the reference video or character
	// image is absent. No remote call is made.
	ErrMissingInputs = errors.New("a reference video and a character image are required")
	// ErrInsufficientCredits is returned when the balance cannot cover the
	// computed cost. No remote call is made; the client routes to the
	// purchase screen.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// PipelineError tags a failure with the stage it happened in, so "credits
// spent but nothing delivered" is an observable state rather than a silent
// side effect of sequencing.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("generation pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// GenerationInput carries one generation attempt. The file readers are
// transient; nothing is kept after the attempt finishes.
type GenerationInput struct {
	UserID    string
	Prompt    string
	Quality   pricing.Quality
	Video     io.ReadSeeker
	VideoName string
	Image     io.ReadSeeker
	ImageName string
}

// referenceValidator is the subset of media.Validator the pipeline needs.
type referenceValidator interface {
	ValidateVideo(r io.ReadSeeker) (float64, error)
	ValidateImage(r io.ReadSeeker) (string, error)
}

// fileUploader matches storage.Uploader.
type fileUploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// GenerationService runs the generation pipeline and lists past results.
type GenerationService interface {
	Generate(ctx context.Context, input GenerationInput) (*model.Generation, error)
	ListGenerations(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error)
	// EstimateCost computes the credit cost for a duration and tier, or the
	// fixed floor when the duration is not yet known.
	EstimateCost(durationSeconds float64, quality pricing.Quality) int
}

type generationService struct {
	repo           repository.GenerationRepository
	credits        CreditService
	validator      referenceValidator
	uploader       fileUploader
	client         GenerationClient
	publisher      realtime.Publisher
	webhookTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
	newID          func() string
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	repo repository.GenerationRepository,
	credits CreditService,
	validator referenceValidator,
	uploader fileUploader,
	client GenerationClient,
	publisher realtime.Publisher,
	webhookTimeout time.Duration,
	logger zerolog.Logger,
) GenerationService {
	return &generationService{
		repo:           repo,
		credits:        credits,
		validator:      validator,
		uploader:       uploader,
		client:         client,
		publisher:      publisher,
		webhookTimeout: webhookTimeout,
		logger:         logger.With().Str("service", "GenerationService").Logger(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Generate executes one attempt as a strictly ordered sequence:
// validate -> check balance -> spend -> upload video -> upload image ->
// call webhook -> record. Every stage short-circuits; nothing is retried.
// Credits spent before a later failure are not refunded automatically; the
// ledger entry and an error log make the gap auditable.
func (s *generationService) Generate(ctx context.Context, input GenerationInput) (*model.Generation, error) {
	if input.Video == nil || input.Image == nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: ErrMissingInputs}
	}

	duration, err := s.validator.ValidateVideo(input.Video)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: err}
	}
	imageType, err := s.validator.ValidateImage(input.Image)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: err}
	}

	cost := pricing.Cost(duration, input.Quality)

	balance, err := s.credits.GetBalance(ctx, input.UserID)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: err}
	}
	if balance.Credits < cost {
		return nil, &PipelineError{Stage: StagePrecondition, Err: ErrInsufficientCredits}
	}

	description := fmt.Sprintf("Motion transfer generation (%s, %d credits)", input.Quality, cost)
	ok, err := s.credits.Spend(ctx, input.UserID, cost, description)
	if err != nil {
		return nil, &PipelineError{Stage: StageSpend, Err: err}
	}
	if !ok {
		// The balance changed between the pre-flight check and the spend.
		return nil, &PipelineError{Stage: StageSpend, Err: ErrInsufficientCredits}
	}

	// Per-identity, per-timestamp namespace so repeated attempts never
	// collide.
	prefix := fmt.Sprintf("uploads/%s/%d", input.UserID, s.now().UnixNano())

	videoURL, err := s.uploader.Upload(ctx, prefix+"/"+orDefault(input.VideoName, "reference.mp4"), input.Video, "video/mp4")
	if err != nil {
		s.logUndelivered(input.UserID, cost, StageUploadVideo, err)
		return nil, &PipelineError{Stage: StageUploadVideo, Err: err}
	}
	imageURL, err := s.uploader.Upload(ctx, prefix+"/"+orDefault(input.ImageName, "character.img"), input.Image, imageType)
	if err != nil {
		s.logUndelivered(input.UserID, cost, StageUploadImage, err)
		return nil, &PipelineError{Stage: StageUploadImage, Err: err}
	}

	webhookCtx, cancel := context.WithTimeout(ctx, s.webhookTimeout)
	defer cancel()
	outputURL, err := s.client.Generate(webhookCtx, GenerationRequest{
		Prompt:  input.Prompt,
		Image:   imageURL,
		Video:   videoURL,
		Quality: string(input.Quality),
	})
	if err != nil {
		s.logUndelivered(input.UserID, cost, StageWebhook, err)
		return nil, &PipelineError{Stage: StageWebhook, Err: err}
	}

	generation := &model.Generation{
		ID:             s.newID(),
		UserID:         input.UserID,
		Prompt:         input.Prompt,
		InputVideoURL:  videoURL,
		InputImageURL:  imageURL,
		OutputVideoURL: outputURL,
		Quality:        string(input.Quality),
		CreditsSpent:   cost,
		Status:         model.GenerationStatusCompleted,
	}
	if err := s.repo.CreateGeneration(ctx, generation); err != nil {
		// The render exists and credits are spent; only the record is lost.
		s.logUndelivered(input.UserID, cost, StageRecord, err)
		return nil, &PipelineError{Stage: StageRecord, Err: err}
	}

	if err := s.publisher.PublishChange(ctx, realtime.KindGeneration, input.UserID); err != nil {
		s.logger.Error().Err(err).Str("user_id", input.UserID).Msg("Failed to publish generation change event")
	}

	return generation, nil
}

// ListGenerations returns the user's generations, most recent first.
func (s *generationService) ListGenerations(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error) {
	generations, err := s.repo.GetGenerationsByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list generations")
		return nil, err
	}
	return generations, nil
}

// EstimateCost mirrors the dashboard's displayed cost.
func (s *generationService) EstimateCost(durationSeconds float64, quality pricing.Quality) int {
	if durationSeconds <= 0 {
		return pricing.MinimumCost
	}
	return pricing.Cost(durationSeconds, quality)
}

func (s *generationService) logUndelivered(userID string, cost int, stage Stage, err error) {
	s.logger.Error().
		Err(err).
		Str("user_id", userID).
		Str("stage", string(stage)).
		Int("credits_spent", cost).
		Msg("Credits spent but generation not delivered")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
