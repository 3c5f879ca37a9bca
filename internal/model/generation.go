package model

import "time"

// Generation statuses. A row is only written once the webhook has returned,
// so "completed" is the normal terminal state.
const (
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// Generation records one motion-transfer request and its output. Rows are
// immutable once inserted.
type Generation struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Prompt         string    `db:"prompt" json:"prompt"`
	InputVideoURL  string    `db:"input_video_url" json:"input_video_url"`
	InputImageURL  string    `db:"input_image_url" json:"input_image_url"`
	OutputVideoURL string    `db:"output_video_url" json:"output_video_url"`
	Quality        string    `db:"quality" json:"quality"`
	CreditsSpent   int       `db:"credits_spent" json:"credits_spent"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
