package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/bunx"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/uptrace/bun"
)

// BunIdeaRepository implements IdeaRepository using Bun ORM
type BunIdeaRepository struct {
	db *bun.DB
}

// NewBunIdeaRepository creates a new Bun-based idea repository
func NewBunIdeaRepository(db *bun.DB) *BunIdeaRepository {
	return &BunIdeaRepository{db: db}
}

// ListByTeam joins each idea with its creator's mirrored name.
func (r *BunIdeaRepository) ListByTeam(ctx context.Context, teamID string) ([]models.Idea, error) {
	var ideas []models.Idea
	err := r.db.NewSelect().
		Model(&ideas).
		Relation("Creator").
		Where("i.team_id = ?", teamID).
		Order("i.created_at DESC", "i.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	return ideas, nil
}

// Create inserts an idea, assigning an id and pending status when unset.
func (r *BunIdeaRepository) Create(ctx context.Context, idea *models.Idea) error {
	if idea.ID == "" {
		idea.ID = bunx.NewUUIDv7()
	}
	if idea.Status == "" {
		idea.Status = models.IdeaStatusPending
	}
	if _, err := models.ParseIdeaStatus(string(idea.Status)); err != nil {
		return err
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NewInsert().
		Model(idea).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create idea: %w", err)
	}
	return nil
}

// Delete removes an idea scoped to the caller's team.
func (r *BunIdeaRepository) Delete(ctx context.Context, teamID, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Idea)(nil)).
		Where("id = ?", id).
		Where("team_id = ?", teamID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
	}
	return nil
}
