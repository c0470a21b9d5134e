package testutil

// actionData holds one action of a definition document.
type actionData struct {
	name        string
	description string
	tags        []string
	base        string
	baseInput   map[string]any
	input       []any
	output      any
	extra       map[string]any
}

// defaultAction returns an ad-hoc action delegating to std.echo.
func defaultAction(name string) actionData {
	return actionData{
		name:      name,
		base:      "std.echo",
		baseInput: map[string]any{"output": "<% $.text %>"},
		input:     []any{"text"},
	}
}

// ActionOption configures an action during builder setup.
type ActionOption func(*actionData)

// WithDescription sets the description.
func WithDescription(d string) ActionOption {
	return func(a *actionData) {
		a.description = d
	}
}

// WithTags sets the tags.
func WithTags(tags ...string) ActionOption {
	return func(a *actionData) {
		a.tags = tags
	}
}

// WithBase sets the base action. An empty base omits the key.
func WithBase(base string) ActionOption {
	return func(a *actionData) {
		a.base = base
	}
}

// WithBaseInput sets base-input.
func WithBaseInput(in map[string]any) ActionOption {
	return func(a *actionData) {
		a.baseInput = in
	}
}

// WithInput replaces the input list with bare parameter names.
func WithInput(params ...string) ActionOption {
	return func(a *actionData) {
		a.input = nil
		for _, p := range params {
			a.input = append(a.input, p)
		}
	}
}

// WithInputDefault appends a parameter with a default value.
func WithInputDefault(name string, def any) ActionOption {
	return func(a *actionData) {
		a.input = append(a.input, map[string]any{name: def})
	}
}

// WithOutput sets the output expression.
func WithOutput(out any) ActionOption {
	return func(a *actionData) {
		a.output = out
	}
}

// WithField sets an arbitrary extra key, for documents that must fail validation.
func WithField(key string, value any) ActionOption {
	return func(a *actionData) {
		if a.extra == nil {
			a.extra = map[string]any{}
		}
		a.extra[key] = value
	}
}
