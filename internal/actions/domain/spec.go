// Package domain provides the pure domain layer for actions with no
// infrastructure dependencies.
//
// It defines the parsed ActionSpec, the persisted Action entity, the values a
// registration writes, the repository and transaction interfaces that storage
// backends implement, and the typed errors shared by every layer.
package domain

import (
	"maps"
	"slices"
	"strings"
)

// InputSeparator joins parameter names when an input signature is serialized.
const InputSeparator = ", "

// ActionSpec is the immutable parsed form of one action definition.
// Construct it with NewActionSpec; all accessors return copies.
type ActionSpec struct {
	name        string
	description string
	tags        []string
	base        string
	baseInput   map[string]any
	input       []string
	raw         map[string]any
}

// NewActionSpec builds an ActionSpec. Tags are de-duplicated and sorted since
// their order carries no meaning; input order is preserved.
func NewActionSpec(name, description string, tags []string, base string, baseInput map[string]any, input []string, raw map[string]any) *ActionSpec {
	return &ActionSpec{
		name:        name,
		description: description,
		tags:        normalizeTags(tags),
		base:        base,
		baseInput:   maps.Clone(baseInput),
		input:       slices.Clone(input),
		raw:         maps.Clone(raw),
	}
}

// Name returns the action name.
func (s *ActionSpec) Name() string {
	return s.name
}

// Description returns the optional description.
func (s *ActionSpec) Description() string {
	return s.description
}

// Tags returns the sorted tag set.
func (s *ActionSpec) Tags() []string {
	return slices.Clone(s.tags)
}

// Base returns the name of the action this one delegates to.
func (s *ActionSpec) Base() string {
	return s.base
}

// BaseInput returns the parameters passed to the base action.
func (s *ActionSpec) BaseInput() map[string]any {
	return maps.Clone(s.baseInput)
}

// Input returns the ordered parameter names.
func (s *ActionSpec) Input() []string {
	return slices.Clone(s.input)
}

// SerializedInput returns the parameter names joined with InputSeparator.
func (s *ActionSpec) SerializedInput() string {
	return strings.Join(s.input, InputSeparator)
}

// Raw returns a shallow copy of the full definition as parsed.
func (s *ActionSpec) Raw() map[string]any {
	return maps.Clone(s.raw)
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
