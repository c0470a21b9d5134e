package presentation

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefinitionDiff is the line diff between a stored definition and a candidate.
type DefinitionDiff struct {
	Name  string
	diffs []diffmatchpatch.Diff
}

// DiffDefinitions compares stored and candidate line by line.
func DiffDefinitions(name, stored, candidate string) DefinitionDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(stored, candidate)
	diffs := dmp.DiffMain(a, b, false)
	return DefinitionDiff{Name: name, diffs: dmp.DiffCharsToLines(diffs, lines)}
}

// Changed reports whether the definitions differ.
func (d DefinitionDiff) Changed() bool {
	for _, diff := range d.diffs {
		if diff.Type != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}

// Stats returns the number of inserted and deleted lines.
func (d DefinitionDiff) Stats() (added, removed int) {
	for _, diff := range d.diffs {
		n := len(splitLines(diff.Text))
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// WriteTo renders the diff with "+", "-" and " " line prefixes.
func (d DefinitionDiff) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s (stored)\n+++ %s (candidate)\n", d.Name, d.Name)
	for _, diff := range d.diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(diff.Text) {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
