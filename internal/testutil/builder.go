// Package testutil provides builders for definition documents and a
// throwaway action store for tests.
package testutil

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// DefinitionBuilder accumulates actions and renders them as a definition
// document in declaration order.
type DefinitionBuilder struct {
	t       testing.TB
	version string
	actions []actionData
}

// NewDefinition creates a builder for a version 2.0 document.
func NewDefinition(t testing.TB) *DefinitionBuilder {
	t.Helper()
	return &DefinitionBuilder{t: t, version: "2.0"}
}

// WithVersion overrides the version value. An empty version omits the key.
func (b *DefinitionBuilder) WithVersion(v string) *DefinitionBuilder {
	b.version = v
	return b
}

// WithAction adds an action with optional configuration.
func (b *DefinitionBuilder) WithAction(name string, opts ...ActionOption) *DefinitionBuilder {
	a := defaultAction(name)
	for _, opt := range opts {
		opt(&a)
	}
	b.actions = append(b.actions, a)
	return b
}

// Build renders the document.
func (b *DefinitionBuilder) Build() string {
	b.t.Helper()

	root := &yaml.Node{Kind: yaml.MappingNode}
	if b.version != "" {
		appendPair(b.t, root, "version", b.version)
	}
	for _, a := range b.actions {
		body := &yaml.Node{Kind: yaml.MappingNode}
		if a.description != "" {
			appendPair(b.t, body, "description", a.description)
		}
		if len(a.tags) > 0 {
			appendPair(b.t, body, "tags", a.tags)
		}
		if a.base != "" {
			appendPair(b.t, body, "base", a.base)
		}
		if len(a.baseInput) > 0 {
			appendPair(b.t, body, "base-input", a.baseInput)
		}
		if len(a.input) > 0 {
			appendPair(b.t, body, "input", a.input)
		}
		if a.output != nil {
			appendPair(b.t, body, "output", a.output)
		}
		keys := make([]string, 0, len(a.extra))
		for k := range a.extra {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			appendPair(b.t, body, k, a.extra[k])
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: a.name}, body)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	require.NoError(b.t, enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}))
	require.NoError(b.t, enc.Close())
	return buf.String()
}

func appendPair(t testing.TB, m *yaml.Node, key string, value any) {
	t.Helper()
	var v yaml.Node
	require.NoError(t, v.Encode(value))
	if key == "version" {
		v.Style = yaml.SingleQuotedStyle
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &v)
}
