// Package cmdutil holds helpers shared by CLI subcommands.
package cmdutil

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/config"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/bunx"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/repository"
)

// MirrorBundle bundles the member repository with its underlying DB connection.
type MirrorBundle struct {
	Members repository.MemberRepository
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *MirrorBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// OpenMirror loads configuration and connects to the local identity mirror.
func OpenMirror(ctx context.Context) (*MirrorBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := bunx.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &MirrorBundle{Members: repository.NewBunMemberRepository(db), DB: db}, nil
}
