package handler

import (
	"errors"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/media"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/pricing"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// Multipart uploads spill to disk above this threshold.
const maxUploadMemory = 32 << 20

// GenerationHandler serves the generation pipeline endpoints.
type GenerationHandler struct {
	generationService service.GenerationService
	logger            zerolog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService service.GenerationService, logger zerolog.Logger) *GenerationHandler {
	return &GenerationHandler{generationService: generationService, logger: logger}
}

// RegisterRoutes mounts v1 generation routes
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/generations", authMw(http.HandlerFunc(h.handleGenerations)))
	mux.Handle("/generations/estimate", authMw(http.HandlerFunc(h.estimate)))
}

func (h *GenerationHandler) handleGenerations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createGeneration(w, r)
	case http.MethodGet:
		h.listGenerations(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *GenerationHandler) createGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	prompt := r.FormValue("prompt")
	if prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	quality, err := pricing.ParseQuality(r.FormValue("quality"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input := service.GenerationInput{
		UserID:  userID,
		Prompt:  prompt,
		Quality: quality,
	}
	if video, header, err := r.FormFile("video"); err == nil {
		defer video.Close()
		input.Video = video
		input.VideoName = header.Filename
	}
	if image, header, err := r.FormFile("image"); err == nil {
		defer image.Close()
		input.Image = image
		input.ImageName = header.Filename
	}

	gen, err := h.generationService.Generate(r.Context(), input)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, generationResponse(gen))
}

// writePipelineError maps a pipeline failure to a status code. Insufficient
// credits get 402 so the client can route straight to the purchase screen.
func (h *GenerationHandler) writePipelineError(w http.ResponseWriter, err error) {
	var pe *service.PipelineError
	if !errors.As(err, &pe) {
		h.logger.Error().Err(err).Msg("generation failed")
		http.Error(w, "generation failed", http.StatusInternalServerError)
		return
	}

	switch {
	case errors.Is(pe, service.ErrInsufficientCredits):
		http.Error(w, pe.Err.Error(), http.StatusPaymentRequired)
	case errors.Is(pe, service.ErrMissingInputs),
		errors.Is(pe, media.ErrDurationExceeded),
		errors.Is(pe, media.ErrUnsupportedType):
		http.Error(w, pe.Err.Error(), http.StatusBadRequest)
	case pe.Stage == service.StagePrecondition:
		// Not a validation failure, e.g. the balance read failed.
		h.logger.Error().Err(pe).Msg("generation precondition check failed")
		http.Error(w, "generation failed", http.StatusInternalServerError)
	case errors.Is(pe, service.ErrWebhookTimeout):
		h.logger.Error().Err(pe).Msg("generation timed out")
		http.Error(w, "generation timed out", http.StatusGatewayTimeout)
	default:
		h.logger.Error().Err(pe).Str("stage", string(pe.Stage)).Msg("generation failed")
		http.Error(w, "generation failed", http.StatusBadGateway)
	}
}

func (h *GenerationHandler) listGenerations(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	generations, err := h.generationService.ListGenerations(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list generations")
		http.Error(w, "failed to list generations", http.StatusInternalServerError)
		return
	}

	resp := make([]dto.GenerationResponseDTO, 0, len(generations))
	for i := range generations {
		resp = append(resp, generationResponse(&generations[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GenerationHandler) estimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	quality, err := pricing.ParseQuality(r.URL.Query().Get("quality"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	duration, err := strconv.ParseFloat(r.URL.Query().Get("duration"), 64)
	if err != nil || duration < 0 {
		duration = 0
	}

	writeJSON(w, http.StatusOK, dto.EstimateResponseDTO{
		DurationSeconds: duration,
		Quality:         string(quality),
		Credits:         h.generationService.EstimateCost(duration, quality),
	})
}

func generationResponse(g *model.Generation) dto.GenerationResponseDTO {
	return dto.GenerationResponseDTO{
		ID:             g.ID,
		Prompt:         g.Prompt,
		InputVideoURL:  g.InputVideoURL,
		InputImageURL:  g.InputImageURL,
		OutputVideoURL: g.OutputVideoURL,
		Quality:        g.Quality,
		CreditsSpent:   g.CreditsSpent,
		Status:         g.Status,
		CreatedAt:      g.CreatedAt,
	}
}
