package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zjrosen/actionreg/internal/actions/application"
	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/cachemanager"
	"github.com/zjrosen/actionreg/internal/config"
	"github.com/zjrosen/actionreg/internal/flags"
	"github.com/zjrosen/actionreg/internal/infrastructure/postgres"
	"github.com/zjrosen/actionreg/internal/infrastructure/sqlite"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/pubsub"
	"github.com/zjrosen/actionreg/internal/tracing"
	"github.com/zjrosen/actionreg/internal/trust"
)

// runtime holds the services a command needs, built from cfg.
type runtime struct {
	repo     domain.ActionRepository
	store    io.Closer
	registry *application.Registry
	service  *application.RegistrationService
	seeder   *application.Seeder
	events   *pubsub.Broker[application.ActionEvent]
	tracer   *tracing.Provider
}

// openRuntime opens the configured store and wires the application services.
// Callers must Close the runtime.
func openRuntime(ctx context.Context, c config.Config) (_ *runtime, err error) {
	provider, err := tracing.NewProvider(ctx, c.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	rt := &runtime{
		tracer: provider,
		events: pubsub.NewBroker[application.ActionEvent](),
	}
	defer func() {
		if err != nil {
			_ = rt.Close(ctx)
		}
	}()

	rt.repo, rt.store, err = openStore(ctx, c.Storage)
	if err != nil {
		return nil, err
	}

	fl := flags.New(c.Flags)

	registryOpts := []application.RegistryOption{application.WithoutResolveCache()}
	if fl.Enabled(flags.FlagResolveCache) {
		cache := cachemanager.NewInMemory[*domain.Action]("resolve", c.Cache.TTL, c.Cache.CleanupInterval)
		registryOpts = []application.RegistryOption{application.WithResolveCache(cache, c.Cache.TTL)}
	}
	registryOpts = append(registryOpts, application.WithRegistryPublisher(rt.events))
	rt.registry = application.NewRegistry(rt.repo, registryOpts...)

	var issuer trust.Issuer
	if fl.Enabled(flags.FlagAuthEnable) {
		issuer, err = trust.NewJWTIssuer(trust.Config{
			SigningKey: []byte(c.Trust.SigningKey),
			Issuer:     c.Trust.Issuer,
			TTL:        c.Trust.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing trust issuer: %w", err)
		}
	}

	rt.service, err = application.NewRegistrationService(rt.repo, rt.registry,
		application.WithFlags(fl, issuer),
		application.WithTracer(provider.Tracer()),
		application.WithPublisher(rt.events),
	)
	if err != nil {
		return nil, err
	}

	rt.seeder, err = application.NewSeeder(rt.repo, rt.registry,
		application.WithSeederTracer(provider.Tracer()),
		application.WithSeederPublisher(rt.events),
	)
	if err != nil {
		return nil, err
	}

	if fl.Enabled(flags.FlagSeedOnStart) {
		if _, err := rt.seeder.Seed(ctx); err != nil {
			return nil, fmt.Errorf("seeding system actions: %w", err)
		}
	}
	return rt, nil
}

func openStore(ctx context.Context, s config.StorageConfig) (domain.ActionRepository, io.Closer, error) {
	switch s.Driver {
	case config.DriverPostgres:
		var opts []postgres.Option
		if s.MaxConns > 0 {
			opts = append(opts, postgres.WithMaxConns(s.MaxConns))
		}
		store, err := postgres.NewStore(ctx, s.DSN, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return store.ActionRepository(), store, nil
	default:
		db, err := sqlite.NewDB(s.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return db.ActionRepository(), db, nil
	}
}

// Close flushes traces and releases the store.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.events != nil {
		rt.events.Close()
	}
	if rt.repo != nil {
		errs = append(errs, rt.repo.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		errs = append(errs, rt.tracer.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(ctx); err != nil {
			log.ErrorErr(log.CatCLI, "Failed to close runtime", err)
		}
	}()
	return fn(rt)
}

// mirrorLogs copies log lines to w until ctx is done.
func mirrorLogs(ctx context.Context, w io.Writer) {
	ch := log.Subscribe(ctx)
	if ch == nil {
		return
	}
	go func() {
		for event := range ch {
			_, _ = io.WriteString(w, event.Payload)
		}
	}()
}
