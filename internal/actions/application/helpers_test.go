package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/testutil"
)

// testCatalog is a small system catalog used instead of the embedded one.
var testCatalog = []SystemAction{
	{Name: "std.echo", Description: "Echo", Tags: []string{"std"}, Input: []string{"output"}},
	{Name: "std.noop", Description: "Noop", Tags: []string{"std"}},
}

type fixture struct {
	repo     domain.ActionRepository
	registry *Registry
}

// newFixture returns a seeded store and a registry without a resolve cache.
func newFixture(t *testing.T, opts ...RegistryOption) *fixture {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	if len(opts) == 0 {
		opts = []RegistryOption{WithoutResolveCache()}
	}
	registry := NewRegistry(repo, opts...)

	seeder, err := NewSeeder(repo, registry, WithCatalog(testCatalog))
	require.NoError(t, err)
	_, err = seeder.Seed(context.Background())
	require.NoError(t, err)

	return &fixture{repo: repo, registry: registry}
}

// load reads name straight from the store, nil when absent.
func (f *fixture) load(t *testing.T, name string) *domain.Action {
	t.Helper()
	var action *domain.Action
	err := f.repo.Transaction(context.Background(), func(tx domain.ActionTx) error {
		var err error
		action, err = tx.LoadByName(context.Background(), name)
		return err
	})
	require.NoError(t, err)
	return action
}

// count returns the number of stored custom actions.
func (f *fixture) count(t *testing.T) int {
	t.Helper()
	custom := false
	actions, err := f.registry.List(context.Background(), domain.ListFilter{System: &custom})
	require.NoError(t, err)
	return len(actions)
}

func actionNames(actions []*domain.Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name()
	}
	return names
}
