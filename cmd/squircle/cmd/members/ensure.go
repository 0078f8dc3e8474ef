package members

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/squircle/cmd/squircle/cmd/cmdutil"
	"github.com/terraconstructs/squircle/cmd/squircle/internal/gateway"
)

var (
	idFlag   string
	nameFlag string
)

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create a mirror record for a member if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.OpenMirror(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		created, err := gateway.EnsureMember(cmd.Context(), bundle.Members, idFlag, nameFlag)
		if err != nil {
			return fmt.Errorf("failed to ensure member: %w", err)
		}
		if created {
			fmt.Printf("Created member %s\n", idFlag)
		} else {
			fmt.Printf("Member %s already mirrored\n", idFlag)
		}
		return nil
	},
}
