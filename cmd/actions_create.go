package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/presentation"
)

var (
	createFile string
	updateFile string
)

var actionsCreateCmd = &cobra.Command{
	Use:   "actions:create",
	Short: "Register every action in a definition document",
	Long: `Register every action declared in a definition document.

All actions are created in one transaction. If any name already exists,
including the name of a system action, nothing is stored.

Examples:
  # Register actions from a file
  actionreg actions:create -f my_actions.yaml

  # Read the document from stdin
  cat my_actions.yaml | actionreg actions:create -f -

  # Print a table instead of JSON
  actionreg actions:create -f my_actions.yaml -o table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createFile == "" {
			return cmd.Help()
		}
		return runRegister(cmd, createFile, false)
	},
}

var actionsUpdateCmd = &cobra.Command{
	Use:   "actions:update",
	Short: "Create or update every action in a definition document",
	Long: `Create or update every action declared in a definition document.

Existing custom actions are replaced and new names are created, all in one
transaction. A document naming a system action is rejected as a whole.

Examples:
  actionreg actions:update -f my_actions.yaml
  actionreg actions:update -f my_actions.yaml --project p-123 --user u-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateFile == "" {
			return cmd.Help()
		}
		return runRegister(cmd, updateFile, true)
	},
}

func init() {
	actionsCreateCmd.Flags().StringVarP(&createFile, "file", "f", "", "Definition document (\"-\" for stdin)")
	actionsUpdateCmd.Flags().StringVarP(&updateFile, "file", "f", "", "Definition document (\"-\" for stdin)")
	rootCmd.AddCommand(actionsCreateCmd, actionsUpdateCmd)
}

func runRegister(cmd *cobra.Command, path string, revise bool) error {
	document, err := readDocument(cmd, path)
	if err != nil {
		return err
	}

	ctx := requestContext(cmd.Context())
	return withRuntime(ctx, func(rt *runtime) error {
		var actions []*domain.Action
		if revise {
			actions, err = rt.service.ReviseActions(ctx, document)
		} else {
			actions, err = rt.service.RegisterActions(ctx, document)
		}
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), outputFormat).
			FormatActions(presentation.FromDomainActions(actions))
	})
}

// readDocument reads a definition document from path, or stdin for "-".
func readDocument(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // G304: path comes from CLI
	}
	if err != nil {
		return "", fmt.Errorf("reading definition: %w", err)
	}
	return string(data), nil
}
