package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/actionreg/internal/presentation"
)

var getDefinition bool

var actionsGetCmd = &cobra.Command{
	Use:   "actions:get NAME",
	Short: "Show one action",
	Long: `Show a stored action by name.

Examples:
  actionreg actions:get std.echo
  actionreg actions:get my.echo --definition -o table`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			action, err := rt.registry.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
				FormatAction(presentation.FromDomainAction(action, getDefinition))
		})
	},
}

var actionsResolveCmd = &cobra.Command{
	Use:   "actions:resolve NAME",
	Short: "Follow an action's base chain down to a system action",
	Long: `Resolve an action's base references down to the system action that
executes it. Fails when a base is missing or the chain is cyclic.

Examples:
  actionreg actions:resolve my.greeting
  actionreg actions:resolve my.greeting -o table`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			chain, err := rt.registry.ResolveChain(ctx, args[0])
			if err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
				FormatChain(presentation.FromDomainActions(chain))
		})
	},
}

var actionsDeleteCmd = &cobra.Command{
	Use:   "actions:delete NAME",
	Short: "Delete a custom action",
	Long: `Delete a custom action by name. System actions cannot be deleted.

Example:
  actionreg actions:delete my.echo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			if err := rt.registry.Delete(ctx, args[0]); err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
				FormatResult(map[string]string{"deleted": args[0]})
		})
	},
}

func init() {
	actionsGetCmd.Flags().BoolVar(&getDefinition, "definition", false, "Include the definition document")
	rootCmd.AddCommand(actionsGetCmd, actionsResolveCmd, actionsDeleteCmd)
}
