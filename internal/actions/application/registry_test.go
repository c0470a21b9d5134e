package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/cachemanager"
	"github.com/zjrosen/actionreg/internal/pubsub"
	"github.com/zjrosen/actionreg/internal/testutil"
)

func registerDoc(t *testing.T, f *fixture, doc string) []*domain.Action {
	t.Helper()
	svc, err := NewRegistrationService(f.repo, f.registry)
	require.NoError(t, err)
	actions, err := svc.RegisterActions(context.Background(), doc)
	require.NoError(t, err)
	return actions
}

func TestRegistry_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	echo, err := f.registry.Resolve(ctx, "std.echo")
	require.NoError(t, err)
	require.True(t, echo.IsSystem())

	_, err = f.registry.Resolve(ctx, "missing.action")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "missing.action", nf.Name)
}

func TestRegistry_ResolveCachesUntilInvalidated(t *testing.T) {
	cache := cachemanager.NewInMemory[*domain.Action]("test", time.Minute, time.Minute)
	f := newFixture(t, WithResolveCache(cache, time.Minute))
	ctx := context.Background()

	registerDoc(t, f, testutil.NewDefinition(t).WithAction("my.echo", testutil.WithDescription("v1")).Build())

	first, err := f.registry.Resolve(ctx, "my.echo")
	require.NoError(t, err)
	require.Equal(t, "v1", first.Description())

	// Write behind the registry's back; the cached copy is still served.
	err = f.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		_, _, err := tx.CreateOrUpdate(ctx, "my.echo", domain.Values{
			Name:        first.Name(),
			Description: "v2",
			Definition:  first.Definition(),
			Spec:        first.Spec(),
			Input:       first.Input(),
		})
		return err
	})
	require.NoError(t, err)

	cached, err := f.registry.Resolve(ctx, "my.echo")
	require.NoError(t, err)
	require.Equal(t, "v1", cached.Description())

	f.registry.Invalidate(ctx, "my.echo")
	fresh, err := f.registry.Resolve(ctx, "my.echo")
	require.NoError(t, err)
	require.Equal(t, "v2", fresh.Description())

	stats := f.registry.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(2), stats.Misses)
}

func TestRegistry_ResolveChain(t *testing.T) {
	f := newFixture(t)
	registerDoc(t, f, testutil.NewDefinition(t).
		WithAction("a.greet").
		WithAction("b.greet", testutil.WithBase("a.greet")).
		Build())

	chain, err := f.registry.ResolveChain(context.Background(), "b.greet")
	require.NoError(t, err)
	require.Equal(t, []string{"b.greet", "a.greet", "std.echo"}, actionNames(chain))
	require.True(t, chain[len(chain)-1].IsSystem())
}

func TestRegistry_ResolveChainErrors(t *testing.T) {
	f := newFixture(t)
	registerDoc(t, f, testutil.NewDefinition(t).
		WithAction("loop.a", testutil.WithBase("loop.b")).
		WithAction("loop.b", testutil.WithBase("loop.a")).
		WithAction("dangling", testutil.WithBase("nowhere")).
		Build())
	ctx := context.Background()

	_, err := f.registry.ResolveChain(ctx, "loop.a")
	var invalid *domain.InvalidActionError
	require.ErrorAs(t, err, &invalid)
	require.Contains(t, invalid.Reason, "cyclic")

	_, err = f.registry.ResolveChain(ctx, "dangling")
	require.True(t, domain.IsNotFound(err))
	require.Contains(t, err.Error(), "resolve base of dangling")

	_, err = f.registry.ResolveChain(ctx, "missing")
	require.True(t, domain.IsNotFound(err))
}

func TestOverrideAllowed(t *testing.T) {
	f := newFixture(t)
	registerDoc(t, f, testutil.EchoDocument(t, "my.echo"))
	ctx := context.Background()

	require.True(t, OverrideAllowed(nil))

	tests := []struct {
		name string
		want bool
	}{
		{"std.echo", false},
		{"my.echo", true},
		{"not.there", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := f.registry.IsOverrideAllowed(ctx, tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.want, allowed)
		})
	}
}

func TestRegistry_CreateOrUpdateInTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created bool
	err := f.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		var err error
		_, created, err = f.registry.CreateOrUpdate(ctx, tx, domain.Values{Name: "new.one", Spec: map[string]any{"base": "std.echo"}})
		return err
	})
	require.NoError(t, err)
	require.True(t, created)

	err = f.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		var err error
		_, created, err = f.registry.CreateOrUpdate(ctx, tx, domain.Values{Name: "new.one", Description: "again"})
		return err
	})
	require.NoError(t, err)
	require.False(t, created)

	err = f.repo.Transaction(ctx, func(tx domain.ActionTx) error {
		_, _, err := f.registry.CreateOrUpdate(ctx, tx, domain.Values{Name: "std.echo"})
		return err
	})
	var invalid *domain.InvalidActionError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "std.echo", invalid.Name)
}

func TestRegistry_Delete(t *testing.T) {
	cache := cachemanager.NewInMemory[*domain.Action]("test", time.Minute, time.Minute)
	f := newFixture(t, WithResolveCache(cache, time.Minute))
	registerDoc(t, f, testutil.EchoDocument(t, "my.echo"))
	ctx := context.Background()

	_, err := f.registry.Resolve(ctx, "my.echo")
	require.NoError(t, err)

	require.NoError(t, f.registry.Delete(ctx, "my.echo"))
	_, err = f.registry.Resolve(ctx, "my.echo")
	require.True(t, domain.IsNotFound(err))

	var invalid *domain.InvalidActionError
	require.ErrorAs(t, f.registry.Delete(ctx, "std.echo"), &invalid)
	require.True(t, domain.IsNotFound(f.registry.Delete(ctx, "my.echo")))
}

func TestRegistry_DeletePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithoutResolveCache(), WithRegistryPublisher(pub))
	created := registerDoc(t, f, testutil.EchoDocument(t, "my.echo"))
	ctx := context.Background()

	require.NoError(t, f.registry.Delete(ctx, "my.echo"))
	require.Error(t, f.registry.Delete(ctx, "my.echo"))
	require.Error(t, f.registry.Delete(ctx, "std.echo"))

	require.Len(t, pub.events, 1, "failed deletes publish nothing")
	require.Equal(t, pubsub.DeletedEvent, pub.events[0].Type)
	require.Equal(t, ActionEvent{Name: "my.echo", ID: created[0].ID(), Mode: ModeDelete}, pub.events[0].Payload)
}
