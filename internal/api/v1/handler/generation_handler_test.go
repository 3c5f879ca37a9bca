package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/pricing"
	"app/internal/service"

	"github.com/rs/zerolog"
)

type fakeGenerationService struct {
	generateErr error
	generated   *model.Generation
	listed      []model.Generation
	inputs      []service.GenerationInput
}

func (f *fakeGenerationService) Generate(_ context.Context, input service.GenerationInput) (*model.Generation, error) {
	f.inputs = append(f.inputs, input)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generated, nil
}

func (f *fakeGenerationService) ListGenerations(context.Context, string, int, int) ([]model.Generation, error) {
	return f.listed, nil
}

func (f *fakeGenerationService) EstimateCost(durationSeconds float64, quality pricing.Quality) int {
	if durationSeconds <= 0 {
		return pricing.MinimumCost
	}
	return pricing.Cost(durationSeconds, quality)
}

func asUser(userID string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
	return r.WithContext(ctx)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for name, data := range files {
		part, err := mw.CreateFormFile(name, name+".bin")
		if err != nil {
			t.Fatalf("create file %s: %v", name, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write file %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func TestCreateGeneration(t *testing.T) {
	svc := &fakeGenerationService{
		generated: &model.Generation{
			ID:             "gen-1",
			UserID:         "user-1",
			Prompt:         "make it dance",
			OutputVideoURL: "https://cdn/out.mp4",
			Quality:        "4K",
			CreditsSpent:   26,
			Status:         model.GenerationStatusCompleted,
			CreatedAt:      time.Now(),
		},
	}
	h := NewGenerationHandler(svc, zerolog.Nop())

	body, contentType := multipartBody(t,
		map[string]string{"prompt": "make it dance", "quality": "4K"},
		map[string][]byte{"video": []byte("vvv"), "image": []byte("iii")},
	)
	req := asUser("user-1", httptest.NewRequest(http.MethodPost, "/generations", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.handleGenerations(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp dto.GenerationResponseDTO
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "gen-1" || resp.OutputVideoURL != "https://cdn/out.mp4" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if len(svc.inputs) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(svc.inputs))
	}
	input := svc.inputs[0]
	if input.UserID != "user-1" || input.Quality != pricing.Quality4K {
		t.Fatalf("unexpected input %+v", input)
	}
	if input.Video == nil || input.Image == nil {
		t.Fatal("files not passed through")
	}
}

func TestCreateGenerationErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			"insufficient credits",
			&service.PipelineError{Stage: service.StagePrecondition, Err: service.ErrInsufficientCredits},
			http.StatusPaymentRequired,
		},
		{
			"missing inputs",
			&service.PipelineError{Stage: service.StagePrecondition, Err: service.ErrMissingInputs},
			http.StatusBadRequest,
		},
		{
			"balance read failure",
			&service.PipelineError{Stage: service.StagePrecondition, Err: errors.New("query balance: connection refused")},
			http.StatusInternalServerError,
		},
		{
			"webhook timeout",
			&service.PipelineError{Stage: service.StageWebhook, Err: service.ErrWebhookTimeout},
			http.StatusGatewayTimeout,
		},
		{
			"upload failure",
			&service.PipelineError{Stage: service.StageUploadVideo, Err: context.Canceled},
			http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGenerationHandler(&fakeGenerationService{generateErr: tt.err}, zerolog.Nop())

			body, contentType := multipartBody(t,
				map[string]string{"prompt": "p", "quality": "720p"},
				map[string][]byte{"video": []byte("v"), "image": []byte("i")},
			)
			req := asUser("user-1", httptest.NewRequest(http.MethodPost, "/generations", body))
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.handleGenerations(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCreateGenerationRejectsUnknownQuality(t *testing.T) {
	svc := &fakeGenerationService{}
	h := NewGenerationHandler(svc, zerolog.Nop())

	body, contentType := multipartBody(t,
		map[string]string{"prompt": "p", "quality": "8K"},
		map[string][]byte{"video": []byte("v")},
	)
	req := asUser("user-1", httptest.NewRequest(http.MethodPost, "/generations", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.handleGenerations(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.inputs) != 0 {
		t.Fatal("service called with invalid quality")
	}
}

func TestCreateGenerationRequiresAuth(t *testing.T) {
	h := NewGenerationHandler(&fakeGenerationService{}, zerolog.Nop())

	body, contentType := multipartBody(t, map[string]string{"prompt": "p", "quality": "720p"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/generations", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.handleGenerations(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListGenerations(t *testing.T) {
	svc := &fakeGenerationService{
		listed: []model.Generation{
			{ID: "gen-2", Status: model.GenerationStatusCompleted},
			{ID: "gen-1", Status: model.GenerationStatusCompleted},
		},
	}
	h := NewGenerationHandler(svc, zerolog.Nop())

	req := asUser("user-1", httptest.NewRequest(http.MethodGet, "/generations?limit=10", nil))
	rec := httptest.NewRecorder()

	h.handleGenerations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []dto.GenerationResponseDTO
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].ID != "gen-2" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEstimate(t *testing.T) {
	h := NewGenerationHandler(&fakeGenerationService{}, zerolog.Nop())

	req := asUser("user-1", httptest.NewRequest(http.MethodGet, "/generations/estimate?duration=12.3&quality=4K", nil))
	rec := httptest.NewRecorder()

	h.estimate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp dto.EstimateResponseDTO
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Credits != 26 {
		t.Fatalf("credits = %d, want 26", resp.Credits)
	}
}
