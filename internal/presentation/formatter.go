package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
	format string
}

// NewFormatter creates a formatter writing format to writer. Unknown formats
// fall back to JSON.
func NewFormatter(writer io.Writer, format string) *Formatter {
	if format != FormatTable {
		format = FormatJSON
	}
	return &Formatter{
		writer: writer,
		format: format,
	}
}

// FormatActions writes a list of actions.
func (f *Formatter) FormatActions(actions []ActionDTO) error {
	if f.format == FormatJSON {
		return f.encode(actions)
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSYSTEM\tBASE\tINPUT\tTAGS\tPROJECT")
	for _, a := range actions {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%s\n",
			a.Name, a.System, dash(a.Base), dash(strings.Join(a.Input, ", ")),
			dash(strings.Join(a.Tags, ",")), dash(deref(a.ProjectID)))
	}
	return tw.Flush()
}

// FormatAction writes a single action.
func (f *Formatter) FormatAction(action ActionDTO) error {
	if f.format == FormatJSON {
		return f.encode(action)
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", action.Name)
	fmt.Fprintf(tw, "ID:\t%d\n", action.ID)
	fmt.Fprintf(tw, "System:\t%t\n", action.System)
	fmt.Fprintf(tw, "Description:\t%s\n", dash(action.Description))
	fmt.Fprintf(tw, "Base:\t%s\n", dash(action.Base))
	fmt.Fprintf(tw, "Input:\t%s\n", dash(strings.Join(action.Input, ", ")))
	fmt.Fprintf(tw, "Tags:\t%s\n", dash(strings.Join(action.Tags, ",")))
	fmt.Fprintf(tw, "Trust:\t%s\n", dash(deref(action.TrustID)))
	fmt.Fprintf(tw, "Project:\t%s\n", dash(deref(action.ProjectID)))
	fmt.Fprintf(tw, "Updated:\t%s\n", action.UpdatedAt.Format("2006-01-02 15:04:05"))
	if err := tw.Flush(); err != nil {
		return err
	}
	if action.Definition != "" {
		_, err := fmt.Fprintf(f.writer, "\n%s", action.Definition)
		return err
	}
	return nil
}

// FormatChain writes a resolved base chain, outermost action first.
func (f *Formatter) FormatChain(chain []ActionDTO) error {
	if f.format == FormatJSON {
		return f.encode(chain)
	}
	names := make([]string, len(chain))
	for i, a := range chain {
		names[i] = a.Name
	}
	_, err := fmt.Fprintln(f.writer, strings.Join(names, " -> "))
	return err
}

// FormatResult writes an arbitrary result as JSON regardless of format.
func (f *Formatter) FormatResult(result any) error {
	return f.encode(result)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
