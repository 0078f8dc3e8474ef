package members

import "github.com/spf13/cobra"

// MembersCmd is the parent command for local identity mirror operations
var MembersCmd = &cobra.Command{
	Use:   "members",
	Short: "Inspect and provision mirrored members",
	Long: `Commands for the local member mirror. Members are owned by the session store;
the mirror only keeps ids and display names so ideas can show their creators.`,
}

func init() {
	ensureCmd.Flags().StringVar(&idFlag, "id", "", "Session store member id (required)")
	ensureCmd.Flags().StringVar(&nameFlag, "name", "", "Display name")
	_ = ensureCmd.MarkFlagRequired("id")

	MembersCmd.AddCommand(listCmd)
	MembersCmd.AddCommand(ensureCmd)
}
