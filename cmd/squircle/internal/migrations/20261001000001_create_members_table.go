package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/squircle/cmd/squircle/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// up_20261001000001 creates the members mirror table
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating members table...")
	_, err := db.NewCreateTable().
		Model((*models.Member)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping members table...")
	_, err := db.NewDropTable().
		Model((*models.Member)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop members table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
