package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/flags"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/pubsub"
	"github.com/zjrosen/actionreg/internal/requestctx"
	"github.com/zjrosen/actionreg/internal/trust"
	"github.com/zjrosen/actionreg/internal/tracing"
)

// ErrTrustIssuerRequired is returned by NewRegistrationService when
// authorization is enabled without a trust issuer.
var ErrTrustIssuerRequired = errors.New("authorization enabled but no trust issuer configured")

// RegistrationService registers definition documents as actions. Every
// document is applied in one store transaction: all of its actions persist or
// none do.
type RegistrationService struct {
	repo        domain.ActionRepository
	registry    *Registry
	authEnabled bool
	trusts      trust.Issuer
	tracer      trace.Tracer
	events      pubsub.Publisher[ActionEvent]
}

// ServiceOption configures a RegistrationService.
type ServiceOption func(*RegistrationService)

// WithFlags reads the auth-enable flag from reg and uses issuer for trusts.
func WithFlags(reg *flags.Registry, issuer trust.Issuer) ServiceOption {
	return func(s *RegistrationService) {
		s.authEnabled = reg.Enabled(flags.FlagAuthEnable)
		s.trusts = issuer
	}
}

// WithAuth sets the authorization flag directly.
func WithAuth(enabled bool, issuer trust.Issuer) ServiceOption {
	return func(s *RegistrationService) {
		s.authEnabled = enabled
		s.trusts = issuer
	}
}

// WithTracer records a span per registration call.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *RegistrationService) {
		s.tracer = tracer
	}
}

// WithPublisher publishes an ActionEvent per persisted action after commit.
func WithPublisher(p pubsub.Publisher[ActionEvent]) ServiceOption {
	return func(s *RegistrationService) {
		s.events = p
	}
}

// NewRegistrationService creates a service writing through repo and checking
// policy against registry.
func NewRegistrationService(repo domain.ActionRepository, registry *Registry, opts ...ServiceOption) (*RegistrationService, error) {
	s := &RegistrationService{
		repo:     repo,
		registry: registry,
		tracer:   noop.NewTracerProvider().Tracer(tracing.DefaultServiceName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authEnabled && s.trusts == nil {
		return nil, ErrTrustIssuerRequired
	}
	return s, nil
}

// AuthEnabled reports whether security metadata is attached to actions.
func (s *RegistrationService) AuthEnabled() bool {
	return s.authEnabled
}

// RegisterActions creates every action in document. Any existing name fails
// the whole document with a DuplicateNameError.
func (s *RegistrationService) RegisterActions(ctx context.Context, document string) ([]*domain.Action, error) {
	return s.register(ctx, document, ModeCreate)
}

// ReviseActions creates or updates every action in document. Any system
// action in document fails the whole document with an InvalidActionError.
func (s *RegistrationService) ReviseActions(ctx context.Context, document string) ([]*domain.Action, error) {
	return s.register(ctx, document, ModeRevise)
}

type written struct {
	action  *domain.Action
	created bool
}

func (s *RegistrationService) register(ctx context.Context, document, mode string) ([]*domain.Action, error) {
	spanName := tracing.SpanRegister
	if mode == ModeRevise {
		spanName = tracing.SpanRevise
	}
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String(tracing.AttrActionMode, mode),
		attribute.Bool(tracing.AttrAuthEnabled, s.authEnabled),
	))
	defer span.End()

	start := time.Now()
	results, err := s.apply(ctx, span, document, mode)
	tracing.RecordError(span, err)
	if err != nil {
		log.Warn(log.CatRegistry, "Registration failed", "mode", mode, "error", err)
		return nil, err
	}

	actions := make([]*domain.Action, len(results))
	names := make([]string, len(results))
	for i, w := range results {
		actions[i] = w.action
		names[i] = w.action.Name()
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrActionCount, len(actions)),
		attribute.StringSlice(tracing.AttrActionNames, names),
	)

	s.registry.Invalidate(ctx, names...)
	s.publish(results, mode)

	log.Info(log.CatRegistry, "Registered actions",
		"mode", mode, "count", len(actions), "duration", time.Since(start))
	return actions, nil
}

func (s *RegistrationService) apply(ctx context.Context, span trace.Span, document, mode string) ([]written, error) {
	specs, err := ParseActions(document)
	if err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventParsed, trace.WithAttributes(attribute.Int(tracing.AttrActionCount, len(specs))))

	var projectID string
	if s.authEnabled {
		projectID = requestctx.ProjectIDFromContext(ctx)
		if projectID == "" {
			return nil, domain.ErrMissingProject
		}
		span.SetAttributes(attribute.String(tracing.AttrProjectID, projectID))
	}

	results := make([]written, 0, len(specs))
	err = s.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		for _, spec := range specs {
			values := domain.ValuesFromSpec(spec, document)
			if err := s.addSecurityInfo(ctx, &values, projectID); err != nil {
				return err
			}

			var (
				w   written
				err error
			)
			switch mode {
			case ModeRevise:
				w.action, w.created, err = s.registry.CreateOrUpdate(ctx, tx, values)
			default:
				w.action, err = tx.Create(ctx, values)
				w.created = true
			}
			if err != nil {
				return err
			}
			results = append(results, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.AddEvent(tracing.EventCommitted)
	return results, nil
}

// addSecurityInfo attaches a fresh trust and the caller's project when
// authorization is enabled. Otherwise both fields stay absent.
func (s *RegistrationService) addSecurityInfo(ctx context.Context, values *domain.Values, projectID string) error {
	if !s.authEnabled {
		return nil
	}
	tr, err := s.trusts.CreateTrust(ctx)
	if err != nil {
		return fmt.Errorf("create trust for %s: %w", values.Name, err)
	}
	trustID := tr.ID
	values.TrustID = &trustID
	values.ProjectID = &projectID
	return nil
}

func (s *RegistrationService) publish(results []written, mode string) {
	if s.events == nil {
		return
	}
	for _, w := range results {
		eventType := pubsub.UpdatedEvent
		if w.created {
			eventType = pubsub.CreatedEvent
		}
		s.events.Publish(eventType, ActionEvent{
			Name:      w.action.Name(),
			ID:        w.action.ID(),
			ProjectID: w.action.ProjectID(),
			Mode:      mode,
		})
	}
}
