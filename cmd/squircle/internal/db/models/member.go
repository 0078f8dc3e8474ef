package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Member is the local mirror of a session-store member. The id is the
// session store's member_id; rows are created on first sighting and never
// deleted by the gateway.
type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull,default:''"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
