// Package application implements action registration on top of the domain
// layer: parsing definition documents, the registry's resolve and override
// policy, the transactional registration service, and system action seeding.
package application

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/actionreg/internal/actions/domain"
)

// SupportedVersion is the only accepted value of a document's version key.
const SupportedVersion = "2.0"

const versionKey = "version"

// actionDefinition describes the accepted shape of one action body. It exists
// only to generate the JSON schema; bodies are decoded generically.
type actionDefinition struct {
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Base        string         `json:"base" jsonschema:"minLength=1"`
	BaseInput   map[string]any `json:"base-input,omitempty"`
	Input       []inputParam   `json:"input,omitempty"`
	Output      any            `json:"output,omitempty"`
}

// inputParam is a bare parameter name or a single-key {name: default} map.
type inputParam struct{}

func (inputParam) JSONSchema() *jsonschema.Schema {
	one := uint64(1)
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", MinLength: &one},
			{Type: "object", MinProperties: &one, MaxProperties: &one},
		},
	}
}

var (
	schemaOnce   sync.Once
	schemaLoader gojsonschema.JSONLoader
	schemaErr    error
)

func definitionSchema() (gojsonschema.JSONLoader, error) {
	schemaOnce.Do(func() {
		r := jsonschema.Reflector{
			Anonymous:      true,
			DoNotReference: true,
			ExpandedStruct: true,
		}
		b, err := r.Reflect(&actionDefinition{}).MarshalJSON()
		if err != nil {
			schemaErr = fmt.Errorf("build action schema: %w", err)
			return
		}
		schemaLoader = gojsonschema.NewBytesLoader(b)
	})
	return schemaLoader, schemaErr
}

// ParseActions parses a definition document into action specs in declaration
// order. Duplicate action names are kept; deciding what they mean is up to
// the caller.
//
// A document is a mapping with a version key and one key per action:
//
//	version: '2.0'
//	my.echo:
//	  base: std.echo
//	  base-input:
//	    output: <% $.text %>
//	  input:
//	    - text
func ParseActions(definition string) ([]*domain.ActionSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(definition), &doc); err != nil {
		return nil, yamlError(err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, &domain.ParseError{Reason: "empty document"}
	}

	root := deref(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, &domain.ParseError{Line: root.Line, Reason: "document must be a mapping of action names"}
	}

	var (
		specs       []*domain.ActionSpec
		versionSeen bool
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, body := root.Content[i], deref(root.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			return nil, &domain.ParseError{Line: key.Line, Reason: "action name must be a string"}
		}
		if key.ShortTag() == "!!merge" {
			return nil, &domain.ParseError{Line: key.Line, Reason: "merge keys are not allowed between actions"}
		}

		if key.Value == versionKey {
			if body.Kind != yaml.ScalarNode || body.Value != SupportedVersion {
				return nil, &domain.ParseError{
					Line:   body.Line,
					Reason: fmt.Sprintf("unsupported version %q, expected %q", body.Value, SupportedVersion),
				}
			}
			versionSeen = true
			continue
		}

		spec, err := parseAction(key, body)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	if !versionSeen {
		return nil, &domain.ParseError{Line: root.Line, Reason: "missing version"}
	}
	if len(specs) == 0 {
		return nil, &domain.ParseError{Line: root.Line, Reason: "no actions defined"}
	}
	return specs, nil
}

func parseAction(key, body *yaml.Node) (*domain.ActionSpec, error) {
	name := key.Value
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\r\n") {
		return nil, &domain.ParseError{Line: key.Line, Reason: fmt.Sprintf("invalid action name %q", name)}
	}
	if body.Kind != yaml.MappingNode {
		return nil, &domain.ParseError{Line: key.Line, Reason: fmt.Sprintf("action %s must be a mapping", name)}
	}

	var raw map[string]any
	if err := body.Decode(&raw); err != nil {
		return nil, &domain.ParseError{Line: body.Line, Reason: fmt.Sprintf("action %s: %v", name, err)}
	}
	if err := validateBody(name, body, raw); err != nil {
		return nil, err
	}
	raw, err := domain.CanonicalSpec(raw)
	if err != nil {
		return nil, &domain.ParseError{Line: body.Line, Reason: fmt.Sprintf("action %s: %v", name, err)}
	}

	description, _ := raw["description"].(string)
	base, _ := raw["base"].(string)
	baseInput, _ := raw["base-input"].(map[string]any)

	var tags []string
	if list, ok := raw["tags"].([]any); ok {
		for _, t := range list {
			tags = append(tags, t.(string))
		}
	}

	var input []string
	if list, ok := raw["input"].([]any); ok {
		for _, item := range list {
			input = append(input, paramName(item))
		}
	}

	raw["name"] = name
	raw[versionKey] = SupportedVersion
	return domain.NewActionSpec(name, description, tags, base, baseInput, input, raw), nil
}

// paramName returns the name of a validated input item.
func paramName(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for k := range v {
			return k
		}
	}
	return ""
}

// validateBody checks raw against the action schema. The first violation is
// reported at the line of the offending field when it can be located.
func validateBody(name string, body *yaml.Node, raw map[string]any) error {
	schema, err := definitionSchema()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return &domain.ParseError{Line: body.Line, Reason: fmt.Sprintf("action %s: %v", name, err)}
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	return &domain.ParseError{
		Line:   fieldLine(body, first.Field()),
		Reason: fmt.Sprintf("action %s: %s", name, first.String()),
	}
}

// fieldLine finds the line of the top-level field named by a schema error
// path such as "input.0", falling back to the body's line.
func fieldLine(body *yaml.Node, path string) int {
	field, _, _ := strings.Cut(path, ".")
	for i := 0; i+1 < len(body.Content); i += 2 {
		if body.Content[i].Value == field {
			return body.Content[i].Line
		}
	}
	if field == "(root)" && len(body.Content) > 0 {
		return body.Content[0].Line
	}
	return body.Line
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

func yamlError(err error) *domain.ParseError {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	line := 0
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return &domain.ParseError{Line: line, Reason: msg}
}
