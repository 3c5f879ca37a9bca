package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationRepository defines methods for accessing generation records.
// Rows are insert-only from the application's point of view.
type GenerationRepository interface {
	CreateGeneration(ctx context.Context, g *model.Generation) error
	// GetGenerationsByUserID returns the user's generations, most recent first.
	GetGenerationsByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error)
}

type generationRepo struct {
	pool *pgxpool.Pool
}

// NewGenerationRepo creates a new GenerationRepository.
func NewGenerationRepo(pool *pgxpool.Pool) GenerationRepository {
	return &generationRepo{pool: pool}
}

// CreateGeneration inserts a completed generation record.
func (r *generationRepo) CreateGeneration(ctx context.Context, g *model.Generation) error {
	const q = `
        INSERT INTO generations (id, user_id, prompt, input_video_url, input_image_url, output_video_url, quality, credits_spent, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at
    `
	err := r.pool.QueryRow(ctx, q,
		g.ID, g.UserID, g.Prompt, g.InputVideoURL, g.InputImageURL, g.OutputVideoURL, g.Quality, g.CreditsSpent, g.Status,
	).Scan(&g.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating generation for user %s: %w", g.UserID, err)
	}
	return nil
}

// GetGenerationsByUserID lists generations ordered by creation time descending.
func (r *generationRepo) GetGenerationsByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Generation, error) {
	const q = `
        SELECT id, user_id, prompt, input_video_url, input_image_url, output_video_url, quality, credits_spent, status, created_at
        FROM generations
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing generations for user %s: %w", userID, err)
	}
	defer rows.Close()

	var generations []model.Generation
	for rows.Next() {
		var g model.Generation
		if err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.Prompt,
			&g.InputVideoURL,
			&g.InputImageURL,
			&g.OutputVideoURL,
			&g.Quality,
			&g.CreditsSpent,
			&g.Status,
			&g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning generation: %w", err)
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing generations for user %s: %w", userID, err)
	}
	if len(generations) == 0 {
		return []model.Generation{}, nil
	}
	return generations, nil
}
