package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000002, down_20261001000002)
}

// up_20261001000002 creates the ideas table with its team index
func up_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating ideas table...")
	_, err := db.NewCreateTable().
		Model((*models.Idea)(nil)).
		IfNotExists().
		ForeignKey(`("creator_id") REFERENCES "members" ("id")`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create ideas table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.Idea)(nil)).
		Index("idx_ideas_team_id").
		Column("team_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create ideas team index: %w", err)
	}

	// SQLite cannot add a CHECK constraint after the fact; the repository validates status there.
	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE ideas
			ADD CONSTRAINT ideas_status_check CHECK (status IN ('pending', 'approved', 'rejected'))
		`)
		if err != nil {
			return fmt.Errorf("failed to add ideas status constraint: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping ideas table...")
	_, err := db.NewDropTable().
		Model((*models.Idea)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop ideas table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
