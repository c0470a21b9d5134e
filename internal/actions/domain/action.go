package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Values are the mutable fields a registration writes for one action.
// TrustID and ProjectID are nil when authorization is disabled; nil means the
// field is absent, which is distinct from an empty string.
type Values struct {
	Name        string
	Description string
	Tags        []string
	Definition  string
	Spec        map[string]any
	Input       string
	TrustID     *string
	ProjectID   *string
}

// ValuesFromSpec derives the values persisted for spec, declared in definition.
// Security fields are left unset.
func ValuesFromSpec(spec *ActionSpec, definition string) Values {
	return Values{
		Name:        spec.Name(),
		Description: spec.Description(),
		Tags:        spec.Tags(),
		Definition:  definition,
		Spec:        spec.Raw(),
		Input:       spec.SerializedInput(),
	}
}

// Action is a persisted, invokable unit of work.
type Action struct {
	id          int64
	name        string
	description string
	tags        []string
	definition  string
	spec        map[string]any
	isSystem    bool
	input       string
	trustID     *string
	projectID   *string
	createdAt   time.Time
	updatedAt   time.Time
}

// ReconstituteAction creates an Action from stored data. Storage backends are
// the only callers.
func ReconstituteAction(
	id int64,
	name, description string,
	tags []string,
	definition string,
	spec map[string]any,
	isSystem bool,
	input string,
	trustID, projectID *string,
	createdAt, updatedAt time.Time,
) *Action {
	return &Action{
		id:          id,
		name:        name,
		description: description,
		tags:        tags,
		definition:  definition,
		spec:        spec,
		isSystem:    isSystem,
		input:       input,
		trustID:     trustID,
		projectID:   projectID,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the storage-assigned identifier.
func (a *Action) ID() int64 {
	return a.id
}

// Name returns the globally unique action name.
func (a *Action) Name() string {
	return a.name
}

// Description returns the description.
func (a *Action) Description() string {
	return a.description
}

// Tags returns the action tags.
func (a *Action) Tags() []string {
	return slices.Clone(a.tags)
}

// Definition returns the document text the action was declared in.
func (a *Action) Definition() string {
	return a.definition
}

// Spec returns the raw spec snapshot taken at persistence time.
func (a *Action) Spec() map[string]any {
	return maps.Clone(a.spec)
}

// IsSystem reports whether this is a seeded built-in action.
func (a *Action) IsSystem() bool {
	return a.isSystem
}

// Input returns the serialized parameter list.
func (a *Action) Input() string {
	return a.input
}

// InputParams splits Input back into parameter names.
func (a *Action) InputParams() []string {
	if strings.TrimSpace(a.input) == "" {
		return nil
	}
	parts := strings.Split(a.input, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Base returns the base action named in the spec, or "" for system actions.
func (a *Action) Base() string {
	base, _ := a.spec["base"].(string)
	return base
}

// TrustID returns the delegated trust id, nil when absent.
func (a *Action) TrustID() *string {
	return a.trustID
}

// ProjectID returns the owning project id, nil when absent.
func (a *Action) ProjectID() *string {
	return a.projectID
}

// CreatedAt returns the creation timestamp.
func (a *Action) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt returns the last update timestamp.
func (a *Action) UpdatedAt() time.Time {
	return a.updatedAt
}
