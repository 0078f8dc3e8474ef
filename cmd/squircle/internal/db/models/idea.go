package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// IdeaStatus is the moderation state of an idea.
type IdeaStatus string

const (
	IdeaStatusPending  IdeaStatus = "pending"
	IdeaStatusApproved IdeaStatus = "approved"
	IdeaStatusRejected IdeaStatus = "rejected"
)

// ParseIdeaStatus validates s.
func ParseIdeaStatus(s string) (IdeaStatus, error) {
	switch IdeaStatus(s) {
	case IdeaStatusPending, IdeaStatusApproved, IdeaStatusRejected:
		return IdeaStatus(s), nil
	default:
		return "", fmt.Errorf("invalid idea status %q", s)
	}
}

// Idea belongs to one team (organization) and is attributed to a member.
type Idea struct {
	bun.BaseModel `bun:"table:ideas,alias:i"`

	ID        string     `bun:"id,pk,type:uuid"`
	Text      string     `bun:"text,notnull"`
	Status    IdeaStatus `bun:"status,notnull,default:'pending'"`
	CreatorID string     `bun:"creator_id,notnull"`
	TeamID    string     `bun:"team_id,notnull"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`

	Creator *Member `bun:"rel:belongs-to,join:creator_id=id"`
}
