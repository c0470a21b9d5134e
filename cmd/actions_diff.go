package cmd

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/actionreg/internal/actions/application"
	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/presentation"
)

var diffFile string

// Diff statuses.
const (
	diffNew       = "new"
	diffChanged   = "changed"
	diffUnchanged = "unchanged"
	diffSystem    = "system"
)

// diffEntry summarizes what actions:update would do to one action.
type diffEntry struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

var actionsDiffCmd = &cobra.Command{
	Use:   "actions:diff",
	Short: "Compare a definition document with the stored actions",
	Long: `Compare a definition document with the definitions currently stored for
each of its actions, without writing anything.

Each action is reported as new, changed, unchanged, or system (an update
would be rejected). Only the action's own definition is compared, so other
actions sharing its document do not affect its status. With -o table the
line diff of each changed action is printed.

Examples:
  actionreg actions:diff -f my_actions.yaml
  actionreg actions:diff -f my_actions.yaml -o table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if diffFile == "" {
			return cmd.Help()
		}
		document, err := readDocument(cmd, diffFile)
		if err != nil {
			return err
		}
		specs, err := application.ParseActions(document)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		return withRuntime(ctx, func(rt *runtime) error {
			out := cmd.OutOrStdout()
			entries := make([]diffEntry, 0, len(specs))
			for _, spec := range specs {
				stored, err := rt.registry.Resolve(ctx, spec.Name())
				if err != nil && !domain.IsNotFound(err) {
					return err
				}

				entry := diffEntry{Name: spec.Name()}
				switch {
				case stored == nil:
					entry.Status = diffNew
				case stored.IsSystem():
					entry.Status = diffSystem
				case reflect.DeepEqual(stored.Spec(), spec.Raw()):
					entry.Status = diffUnchanged
				default:
					entry.Status = diffChanged
					d, err := diffSpecs(spec.Name(), stored.Spec(), spec.Raw())
					if err != nil {
						return err
					}
					entry.Added, entry.Removed = d.Stats()
					if outputFormat == presentation.FormatTable {
						if _, err := d.WriteTo(out); err != nil {
							return err
						}
					}
				}
				entries = append(entries, entry)
			}

			if outputFormat != presentation.FormatTable {
				return presentation.NewFormatter(out, outputFormat).FormatResult(entries)
			}
			for _, e := range entries {
				if _, err := fmt.Fprintf(out, "%s: %s (+%d -%d)\n", e.Name, e.Status, e.Added, e.Removed); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

// diffSpecs renders both specs as YAML with sorted keys and diffs the lines.
func diffSpecs(name string, stored, candidate map[string]any) (presentation.DefinitionDiff, error) {
	before, err := yaml.Marshal(stored)
	if err != nil {
		return presentation.DefinitionDiff{}, fmt.Errorf("render stored %s: %w", name, err)
	}
	after, err := yaml.Marshal(candidate)
	if err != nil {
		return presentation.DefinitionDiff{}, fmt.Errorf("render %s: %w", name, err)
	}
	return presentation.DiffDefinitions(name, string(before), string(after)), nil
}

func init() {
	actionsDiffCmd.Flags().StringVarP(&diffFile, "file", "f", "", "Definition document (\"-\" for stdin)")
	rootCmd.AddCommand(actionsDiffCmd)
}
