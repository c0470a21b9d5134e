package application

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/pubsub"
	"github.com/zjrosen/actionreg/internal/tracing"
)

//go:embed builtin/std_actions.yaml
var stdActionsYAML []byte

// SystemAction is one entry of the built-in action catalog.
type SystemAction struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Input       []string `yaml:"input"`
}

type catalogFile struct {
	Actions []SystemAction `yaml:"actions"`
}

// StandardCatalog returns the embedded built-in actions.
func StandardCatalog() ([]SystemAction, error) {
	return LoadCatalog(stdActionsYAML)
}

// LoadCatalog parses a system action catalog.
func LoadCatalog(data []byte) ([]SystemAction, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse action catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Actions))
	for i, a := range file.Actions {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("action catalog entry %d: name is required", i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("action catalog entry %d: duplicate name %s", i, a.Name)
		}
		seen[a.Name] = true
	}
	return file.Actions, nil
}

func (a SystemAction) values() domain.Values {
	input := make([]any, len(a.Input))
	for i, p := range a.Input {
		input[i] = p
	}
	return domain.Values{
		Name:        a.Name,
		Description: a.Description,
		Tags:        a.Tags,
		Spec: map[string]any{
			"name":        a.Name,
			"description": a.Description,
			"input":       input,
		},
		Input: strings.Join(a.Input, domain.InputSeparator),
	}
}

// Seeder writes the system action catalog. It is the only writer of system actions.
type Seeder struct {
	repo     domain.ActionRepository
	registry *Registry
	catalog  []SystemAction
	tracer   trace.Tracer
	events   pubsub.Publisher[ActionEvent]
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithCatalog replaces the embedded catalog.
func WithCatalog(catalog []SystemAction) SeederOption {
	return func(s *Seeder) {
		s.catalog = catalog
	}
}

// WithSeederTracer records a span per Seed call.
func WithSeederTracer(tracer trace.Tracer) SeederOption {
	return func(s *Seeder) {
		s.tracer = tracer
	}
}

// WithSeederPublisher publishes a seeded event per action after commit.
func WithSeederPublisher(p pubsub.Publisher[ActionEvent]) SeederOption {
	return func(s *Seeder) {
		s.events = p
	}
}

// NewSeeder creates a Seeder for the embedded catalog unless WithCatalog is given.
func NewSeeder(repo domain.ActionRepository, registry *Registry, opts ...SeederOption) (*Seeder, error) {
	s := &Seeder{
		repo:     repo,
		registry: registry,
		tracer:   noop.NewTracerProvider().Tracer(tracing.DefaultServiceName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		catalog, err := StandardCatalog()
		if err != nil {
			return nil, err
		}
		s.catalog = catalog
	}
	return s, nil
}

// Seed creates or refreshes every catalog action in one transaction. It fails
// with DuplicateNameError if a custom action already uses a catalog name.
func (s *Seeder) Seed(ctx context.Context) ([]*domain.Action, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanSeed)
	defer span.End()

	actions := make([]*domain.Action, 0, len(s.catalog))
	err := s.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		for _, sa := range s.catalog {
			action, err := tx.SeedSystem(ctx, sa.values())
			if err != nil {
				return err
			}
			actions = append(actions, action)
		}
		return nil
	})
	tracing.RecordError(span, err)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name()
		if s.events != nil {
			s.events.Publish(pubsub.SeededEvent, ActionEvent{Name: a.Name(), ID: a.ID(), Mode: ModeSeed})
		}
	}
	s.registry.Invalidate(ctx, names...)
	span.SetAttributes(attribute.Int(tracing.AttrActionCount, len(actions)))

	log.Info(log.CatRegistry, "Seeded system actions", "count", len(actions))
	return actions, nil
}
