package repository

import (
	"context"
	"errors"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
)

var (
	// ErrMemberExists is returned by MemberRepository.Create when the id is taken.
	ErrMemberExists = errors.New("member already exists")

	// ErrMemberNotFound is returned when no mirror record exists for an id.
	ErrMemberNotFound = errors.New("member not found")

	// ErrIdeaNotFound is returned when an idea does not exist within the team.
	ErrIdeaNotFound = errors.New("idea not found")
)

// MemberRepository persists the local identity mirror.
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id string) (*models.Member, error)
	// Upsert creates the record or replaces its name.
	Upsert(ctx context.Context, member *models.Member) error
	List(ctx context.Context) ([]models.Member, error)
}

// IdeaRepository persists ideas scoped to a team.
type IdeaRepository interface {
	// ListByTeam returns the team's ideas, newest first, with Creator loaded.
	ListByTeam(ctx context.Context, teamID string) ([]models.Idea, error)
	Create(ctx context.Context, idea *models.Idea) error
	// Delete removes the idea only if it belongs to teamID.
	Delete(ctx context.Context, teamID, id string) error
}
