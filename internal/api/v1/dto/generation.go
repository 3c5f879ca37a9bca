package dto

import "time"

// GenerationResponseDTO is returned for created and listed generations
type GenerationResponseDTO struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	InputVideoURL  string    `json:"input_video_url"`
	InputImageURL  string    `json:"input_image_url"`
	OutputVideoURL string    `json:"output_video_url"`
	Quality        string    `json:"quality"`
	CreditsSpent   int       `json:"credits_spent"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// EstimateResponseDTO is returned by the cost estimate endpoint
type EstimateResponseDTO struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Quality         string  `json:"quality"`
	Credits         int     `json:"credits"`
}
