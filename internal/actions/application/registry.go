package application

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/cachemanager"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/pubsub"
)

// Registry resolves action names and owns the override policy for system actions.
type Registry struct {
	repo   domain.ActionRepository
	cache  *cachemanager.ReadThrough[*domain.Action]
	events pubsub.Publisher[ActionEvent]
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	cache    cachemanager.Manager[*domain.Action]
	ttl      time.Duration
	disabled bool
	events   pubsub.Publisher[ActionEvent]
}

// WithResolveCache serves Resolve from cache with entries living for ttl.
func WithResolveCache(cache cachemanager.Manager[*domain.Action], ttl time.Duration) RegistryOption {
	return func(c *registryConfig) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithoutResolveCache sends every Resolve to the store.
func WithoutResolveCache() RegistryOption {
	return func(c *registryConfig) {
		c.disabled = true
	}
}

// WithRegistryPublisher publishes a DeletedEvent for every action Delete removes.
func WithRegistryPublisher(p pubsub.Publisher[ActionEvent]) RegistryOption {
	return func(c *registryConfig) {
		c.events = p
	}
}

// NewRegistry creates a Registry over repo. By default it caches resolved
// actions in memory for cachemanager.DefaultExpiration.
func NewRegistry(repo domain.ActionRepository, opts ...RegistryOption) *Registry {
	cfg := &registryConfig{ttl: cachemanager.DefaultExpiration}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.cache == nil {
		cfg.cache = cachemanager.NewInMemory[*domain.Action]("resolve", cfg.ttl, cachemanager.DefaultCleanupInterval)
	}

	r := &Registry{repo: repo, events: cfg.events}
	r.cache = cachemanager.NewReadThrough(cfg.cache, r.load, cfg.ttl, cfg.disabled)
	return r
}

func (r *Registry) load(ctx context.Context, name string) (*domain.Action, error) {
	var action *domain.Action
	err := r.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		var err error
		action, err = tx.LoadByName(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, &domain.NotFoundError{Name: name}
	}
	return action, nil
}

// Resolve returns the persisted action named name, or a NotFoundError.
func (r *Registry) Resolve(ctx context.Context, name string) (*domain.Action, error) {
	return r.cache.Get(ctx, name)
}

// ResolveChain follows base references from name down to the system action
// that finally executes. The returned chain starts with name's action and ends
// with a system action.
func (r *Registry) ResolveChain(ctx context.Context, name string) ([]*domain.Action, error) {
	var chain []*domain.Action
	seen := make(map[string]bool)

	for current := name; ; {
		seen[current] = true
		action, err := r.Resolve(ctx, current)
		if err != nil {
			if len(chain) > 0 {
				return nil, fmt.Errorf("resolve base of %s: %w", chain[len(chain)-1].Name(), err)
			}
			return nil, err
		}
		chain = append(chain, action)

		if action.IsSystem() {
			return chain, nil
		}

		base := action.Base()
		if base == "" {
			return nil, &domain.InvalidActionError{Name: action.Name(), Reason: "action has no base"}
		}
		if seen[base] {
			return nil, &domain.InvalidActionError{Name: name, Reason: fmt.Sprintf("cyclic base chain through %s", base)}
		}
		current = base
	}
}

// OverrideAllowed reports whether registration may replace action. Absent
// actions and custom actions may be replaced; system actions never.
func OverrideAllowed(action *domain.Action) bool {
	return action == nil || !action.IsSystem()
}

// IsOverrideAllowed reports whether the action named name may be replaced.
func (r *Registry) IsOverrideAllowed(ctx context.Context, name string) (bool, error) {
	action, err := r.Resolve(ctx, name)
	if domain.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return OverrideAllowed(action), nil
}

// CreateOrUpdate writes values inside tx after checking the override policy
// against the record as seen by tx. created reports whether the write
// inserted the record.
func (r *Registry) CreateOrUpdate(ctx context.Context, tx domain.ActionTx, values domain.Values) (action *domain.Action, created bool, err error) {
	existing, err := tx.LoadByName(ctx, values.Name)
	if err != nil {
		return nil, false, err
	}
	if !OverrideAllowed(existing) {
		log.Warn(log.CatRegistry, "Refused system action modification", "name", values.Name)
		return nil, false, domain.NewSystemActionError(values.Name)
	}
	return tx.CreateOrUpdate(ctx, values.Name, values)
}

// List returns stored actions matching filter.
func (r *Registry) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Action, error) {
	var actions []*domain.Action
	err := r.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		var err error
		actions, err = tx.List(ctx, filter)
		return err
	})
	return actions, err
}

// Delete removes a custom action and drops it from the cache.
func (r *Registry) Delete(ctx context.Context, name string) error {
	var deleted *domain.Action
	err := r.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		existing, err := tx.LoadByName(ctx, name)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, name); err != nil {
			return err
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return err
	}
	r.Invalidate(ctx, name)
	log.Info(log.CatRegistry, "Deleted action", "name", name)

	if r.events != nil {
		r.events.Publish(pubsub.DeletedEvent, ActionEvent{
			Name:      deleted.Name(),
			ID:        deleted.ID(),
			ProjectID: deleted.ProjectID(),
			Mode:      ModeDelete,
		})
	}
	return nil
}

// Invalidate drops cached entries for names. Call it after a commit that
// changed them.
func (r *Registry) Invalidate(ctx context.Context, names ...string) {
	r.cache.Invalidate(ctx, names...)
}

// CacheStats returns resolve cache counters.
func (r *Registry) CacheStats() cachemanager.Stats {
	return r.cache.Stats()
}
