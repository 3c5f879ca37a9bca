package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"app/internal/media"
	"app/internal/model"
	"app/internal/pricing"
	"app/internal/realtime"

	"github.com/rs/zerolog"
)

type fakeCredits struct {
	balance    int
	spendOK    bool
	spendErr   error
	spendCalls []int
	addCalls   []int
}

func (f *fakeCredits) GetBalance(_ context.Context, userID string) (*model.Balance, error) {
	return &model.Balance{UserID: userID, Credits: f.balance}, nil
}

func (f *fakeCredits) Spend(_ context.Context, _ string, amount int, _ string) (bool, error) {
	f.spendCalls = append(f.spendCalls, amount)
	if f.spendErr != nil {
		return false, f.spendErr
	}
	return f.spendOK, nil
}

func (f *fakeCredits) Add(_ context.Context, _ string, amount int, _ string) error {
	f.addCalls = append(f.addCalls, amount)
	return nil
}

func (f *fakeCredits) ListPackages(context.Context) ([]model.CreditPackage, error) {
	return nil, nil
}

func (f *fakeCredits) GetPackage(context.Context, int64) (*model.CreditPackage, error) {
	return nil, nil
}

func (f *fakeCredits) ListTransactions(context.Context, string, int) ([]model.CreditTransaction, error) {
	return nil, nil
}

type fakeValidator struct {
	duration float64
	videoErr error
}

func (f fakeValidator) ValidateVideo(io.ReadSeeker) (float64, error) {
	return f.duration, f.videoErr
}

func (f fakeValidator) ValidateImage(io.ReadSeeker) (string, error) {
	return "image/png", nil
}

type fakeUploader struct {
	keys    []string
	failOn  int // 1-based index of the upload that fails; 0 never fails
	baseURL string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ io.Reader, _ string) (string, error) {
	f.keys = append(f.keys, key)
	if f.failOn > 0 && len(f.keys) == f.failOn {
		return "", errors.New("storage unavailable")
	}
	return f.baseURL + "/" + key, nil
}

type fakeGenClient struct {
	output string
	err    error
	calls  []GenerationRequest
	ctxs   []context.Context
}

func (f *fakeGenClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	f.calls = append(f.calls, req)
	f.ctxs = append(f.ctxs, ctx)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

type fakeGenRepo struct {
	inserted  []*model.Generation
	insertErr error
}

func (f *fakeGenRepo) CreateGeneration(_ context.Context, g *model.Generation) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, g)
	return nil
}

func (f *fakeGenRepo) GetGenerationsByUserID(context.Context, string, int, int) ([]model.Generation, error) {
	return nil, nil
}

type fakePublisher struct {
	events []realtime.Kind
}

func (f *fakePublisher) PublishChange(_ context.Context, kind realtime.Kind, _ string) error {
	f.events = append(f.events, kind)
	return nil
}

type pipelineFixture struct {
	credits   *fakeCredits
	validator fakeValidator
	uploader  *fakeUploader
	client    *fakeGenClient
	repo      *fakeGenRepo
	publisher *fakePublisher
	svc       GenerationService
}

func newPipelineFixture(credits *fakeCredits, validator fakeValidator, uploader *fakeUploader, client *fakeGenClient, repo *fakeGenRepo) *pipelineFixture {
	publisher := &fakePublisher{}
	svc := NewGenerationService(repo, credits, validator, uploader, client, publisher, 15*time.Minute, zerolog.Nop())
	return &pipelineFixture{
		credits:   credits,
		validator: validator,
		uploader:  uploader,
		client:    client,
		repo:      repo,
		publisher: publisher,
		svc:       svc,
	}
}

func validInput() GenerationInput {
	return GenerationInput{
		UserID:    "user-1",
		Prompt:    "make it dance",
		Quality:   pricing.Quality4K,
		Video:     strings.NewReader("video-bytes"),
		VideoName: "reference.mp4",
		Image:     strings.NewReader("image-bytes"),
		ImageName: "character.png",
	}
}

func assertStage(t *testing.T, err error, stage Stage) *PipelineError {
	t.Helper()
	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != stage {
		t.Fatalf("stage = %s, want %s", pe.Stage, stage)
	}
	return pe
}

func TestGenerateMissingInputsMakesNoRemoteCalls(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	input := validInput()
	input.Image = nil
	_, err := f.svc.Generate(context.Background(), input)

	pe := assertStage(t, err, StagePrecondition)
	if !errors.Is(pe, ErrMissingInputs) {
		t.Fatalf("expected ErrMissingInputs, got %v", pe.Err)
	}
	if len(f.credits.spendCalls) != 0 || len(f.uploader.keys) != 0 || len(f.client.calls) != 0 || len(f.repo.inserted) != 0 {
		t.Fatal("expected zero remote calls")
	}
}

func TestGenerateOversizedVideoNeverReachesPipeline(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{videoErr: media.ErrDurationExceeded},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	pe := assertStage(t, err, StagePrecondition)
	if !errors.Is(pe, media.ErrDurationExceeded) {
		t.Fatalf("expected ErrDurationExceeded, got %v", pe.Err)
	}
	if len(f.credits.spendCalls) != 0 || len(f.uploader.keys) != 0 || len(f.client.calls) != 0 {
		t.Fatal("expected zero remote calls")
	}
}

func TestGenerateInsufficientBalanceMakesNoRemoteCalls(t *testing.T) {
	// 12.3s at 4K costs 26; the balance holds 25.
	f := newPipelineFixture(
		&fakeCredits{balance: 25, spendOK: true},
		fakeValidator{duration: 12.3},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	pe := assertStage(t, err, StagePrecondition)
	if !errors.Is(pe, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", pe.Err)
	}
	if len(f.credits.spendCalls) != 0 || len(f.uploader.keys) != 0 || len(f.client.calls) != 0 || len(f.repo.inserted) != 0 {
		t.Fatal("expected zero remote calls")
	}
}

func TestGenerateSpendFailureAbortsBeforeUploads(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendErr: errors.New("rpc unavailable")},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	assertStage(t, err, StageSpend)
	if len(f.uploader.keys) != 0 || len(f.client.calls) != 0 || len(f.repo.inserted) != 0 {
		t.Fatal("nothing may run after a failed spend")
	}
}

func TestGenerateSpendRejectedReportsInsufficientCredits(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: false},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	pe := assertStage(t, err, StageSpend)
	if !errors.Is(pe, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", pe.Err)
	}
}

func TestGenerateUploadFailureDoesNotRefund(t *testing.T) {
	credits := &fakeCredits{balance: 100, spendOK: true}
	f := newPipelineFixture(
		credits,
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn", failOn: 1},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	assertStage(t, err, StageUploadVideo)
	if len(credits.spendCalls) != 1 {
		t.Fatalf("spend calls = %d, want 1", len(credits.spendCalls))
	}
	if len(credits.addCalls) != 0 {
		t.Fatal("credits must not be refunded automatically")
	}
	if len(f.client.calls) != 0 || len(f.repo.inserted) != 0 {
		t.Fatal("webhook and record must not run after a failed upload")
	}
}

func TestGenerateSecondUploadFailureAborts(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn", failOn: 2},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	assertStage(t, err, StageUploadImage)
	if len(f.client.calls) != 0 || len(f.repo.inserted) != 0 {
		t.Fatal("webhook and record must not run after a failed upload")
	}
}

func TestGenerateWebhookNeverCalledWithoutSpend(t *testing.T) {
	client := &fakeGenClient{output: "https://cdn/out.mp4"}
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendErr: errors.New("boom")},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		client,
		&fakeGenRepo{},
	)

	_, _ = f.svc.Generate(context.Background(), validInput())

	if len(client.calls) != 0 {
		t.Fatal("webhook called without a successful spend")
	}
}

func TestGenerateWebhookFailureSkipsRecord(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{err: errors.New("status 502")},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	assertStage(t, err, StageWebhook)
	if len(f.repo.inserted) != 0 {
		t.Fatal("no generation row may exist without an output URL")
	}
}

func TestGenerateWebhookTimeoutIsDistinct(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{err: ErrWebhookTimeout},
		&fakeGenRepo{},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	pe := assertStage(t, err, StageWebhook)
	if !errors.Is(pe, ErrWebhookTimeout) {
		t.Fatalf("expected ErrWebhookTimeout, got %v", pe.Err)
	}
}

func TestGenerateBoundsWebhookCall(t *testing.T) {
	client := &fakeGenClient{output: "https://cdn/out.mp4"}
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		client,
		&fakeGenRepo{},
	)

	if _, err := f.svc.Generate(context.Background(), validInput()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	deadline, ok := client.ctxs[0].Deadline()
	if !ok {
		t.Fatal("webhook context has no deadline")
	}
	if remaining := time.Until(deadline); remaining > 15*time.Minute {
		t.Fatalf("deadline too far out: %v", remaining)
	}
}

func TestGenerateSuccess(t *testing.T) {
	credits := &fakeCredits{balance: 30, spendOK: true}
	uploader := &fakeUploader{baseURL: "https://cdn"}
	client := &fakeGenClient{output: "https://cdn/out.mp4"}
	repo := &fakeGenRepo{}
	f := newPipelineFixture(credits, fakeValidator{duration: 12.3}, uploader, client, repo)

	gen, err := f.svc.Generate(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// 12.3s at 4K: ceil(13 * 2) = 26 credits.
	if len(credits.spendCalls) != 1 || credits.spendCalls[0] != 26 {
		t.Fatalf("spend calls = %v, want [26]", credits.spendCalls)
	}
	if len(uploader.keys) != 2 {
		t.Fatalf("uploads = %d, want 2", len(uploader.keys))
	}
	for _, key := range uploader.keys {
		if !strings.HasPrefix(key, "uploads/user-1/") {
			t.Fatalf("upload key %q not namespaced by identity", key)
		}
	}
	if len(client.calls) != 1 {
		t.Fatalf("webhook calls = %d, want 1", len(client.calls))
	}
	if client.calls[0].Quality != "4K" || client.calls[0].Prompt != "make it dance" {
		t.Fatalf("unexpected webhook request %+v", client.calls[0])
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted rows = %d, want 1", len(repo.inserted))
	}
	row := repo.inserted[0]
	if row.OutputVideoURL != "https://cdn/out.mp4" {
		t.Fatalf("output url = %s", row.OutputVideoURL)
	}
	if row.Status != model.GenerationStatusCompleted {
		t.Fatalf("status = %s", row.Status)
	}
	if row.CreditsSpent != 26 {
		t.Fatalf("credits spent = %d, want 26", row.CreditsSpent)
	}
	if gen.ID == "" {
		t.Fatal("generation id not assigned")
	}

	foundGeneration := false
	for _, kind := range f.publisher.events {
		if kind == realtime.KindGeneration {
			foundGeneration = true
		}
	}
	if !foundGeneration {
		t.Fatal("generation change event not published")
	}
}

func TestGenerateRecordFailureIsReported(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{insertErr: errors.New("insert failed")},
	)

	_, err := f.svc.Generate(context.Background(), validInput())

	assertStage(t, err, StageRecord)
}

func TestEstimateCost(t *testing.T) {
	f := newPipelineFixture(
		&fakeCredits{balance: 100, spendOK: true},
		fakeValidator{duration: 10},
		&fakeUploader{baseURL: "https://cdn"},
		&fakeGenClient{output: "https://cdn/out.mp4"},
		&fakeGenRepo{},
	)

	if got := f.svc.EstimateCost(0, pricing.Quality4K); got != pricing.MinimumCost {
		t.Fatalf("estimate without duration = %d, want floor %d", got, pricing.MinimumCost)
	}
	if got := f.svc.EstimateCost(12.3, pricing.Quality4K); got != 26 {
		t.Fatalf("estimate = %d, want 26", got)
	}
}
