package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunMemberRepository implements MemberRepository using Bun ORM
type BunMemberRepository struct {
	db *bun.DB
}

// NewBunMemberRepository creates a new Bun-based member repository
func NewBunMemberRepository(db *bun.DB) *BunMemberRepository {
	return &BunMemberRepository{db: db}
}

// Create inserts a new member. A concurrent insert of the same id surfaces as ErrMemberExists.
func (r *BunMemberRepository) Create(ctx context.Context, member *models.Member) error {
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(member).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrMemberExists, member.ID)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetByID retrieves a member by id
func (r *BunMemberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	member := new(models.Member)
	err := r.db.NewSelect().
		Model(member).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		return nil, fmt.Errorf("get member by ID: %w", err)
	}
	return member, nil
}

// Upsert inserts the member or updates the stored name.
func (r *BunMemberRepository) Upsert(ctx context.Context, member *models.Member) error {
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(member).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// List retrieves all members, most recent first
func (r *BunMemberRepository) List(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	err := r.db.NewSelect().
		Model(&members).
		Order("created_at DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// isUniqueViolation matches unique-key failures from PostgreSQL (SQLSTATE 23505)
// and SQLite ("UNIQUE constraint failed").
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
