package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/actionreg/internal/presentation"
)

var actionsSeedCmd = &cobra.Command{
	Use:   "actions:seed",
	Short: "Create or refresh the built-in system actions",
	Long: `Create or refresh the built-in system actions in one transaction.

Seeding fails if a custom action already uses a system action name.

Example:
  actionreg actions:seed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			actions, err := rt.seeder.Seed(ctx)
			if err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
				FormatActions(presentation.FromDomainActions(actions))
		})
	},
}

func init() {
	rootCmd.AddCommand(actionsSeedCmd)
}
