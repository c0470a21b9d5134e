package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/presentation"
)

var (
	listSystem  bool
	listCustom  bool
	listTag     string
	listProject string
	listLimit   int
)

var actionsListCmd = &cobra.Command{
	Use:   "actions:list",
	Short: "List stored actions",
	Long: `List stored actions ordered by name.

Examples:
  # List everything
  actionreg actions:list

  # Only system actions, as a table
  actionreg actions:list --system -o table

  # Custom actions of one project carrying a tag
  actionreg actions:list --custom --project p-123 --tag http

  # Parse specific fields with jq
  actionreg actions:list | jq '.[].name'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := domain.ListFilter{
			Tag:       listTag,
			ProjectID: listProject,
			Limit:     listLimit,
		}
		switch {
		case listSystem && !listCustom:
			system := true
			filter.System = &system
		case listCustom && !listSystem:
			system := false
			filter.System = &system
		}

		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			actions, err := rt.registry.List(ctx, filter)
			if err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
				FormatActions(presentation.FromDomainActions(actions))
		})
	},
}

func init() {
	actionsListCmd.Flags().BoolVar(&listSystem, "system", false, "Only system actions")
	actionsListCmd.Flags().BoolVar(&listCustom, "custom", false, "Only custom actions")
	actionsListCmd.Flags().StringVarP(&listTag, "tag", "t", "", "Only actions carrying this tag")
	actionsListCmd.Flags().StringVar(&listProject, "project-id", "", "Only actions of this project")
	actionsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of actions (0 for all)")
	rootCmd.AddCommand(actionsListCmd)
}
