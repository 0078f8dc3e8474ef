package members

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/squircle/cmd/squircle/cmd/cmdutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored members",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.OpenMirror(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		members, err := bundle.Members.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED_AT\tUPDATED_AT")
		for _, m := range members {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				m.ID,
				m.Name,
				m.CreatedAt.Format(time.RFC3339),
				m.UpdatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}
