package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/actionreg/internal/actions/domain"
)

// dsnEnv names the variable holding a disposable test database DSN.
const dsnEnv = "ACTIONREG_TEST_POSTGRES_DSN"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn, WithMaxConns(8))
	require.NoError(t, err)
	_, err = store.Pool().Exec(ctx, "TRUNCATE actions RESTART IDENTITY")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ptr(s string) *string { return &s }

func values(name string) domain.Values {
	return domain.Values{
		Name:        name,
		Description: "Echo the input",
		Tags:        []string{"echo"},
		Definition:  "version: '2.0'",
		Spec:        map[string]any{"base": "std.echo"},
		Input:       "output",
	}
}

func TestNewStore_RequiresConnection(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestNewStore_InvalidDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "postgres://%zz")
	require.Error(t, err)
}

func TestStore_CreateLoadUpdate(t *testing.T) {
	repo := newTestStore(t).ActionRepository()
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx domain.ActionTx) error {
		v := values("my.echo")
		v.ProjectID = ptr("proj-1")
		_, err := tx.Create(ctx, v)
		return err
	})
	require.NoError(t, err)

	err = repo.Transaction(ctx, func(tx domain.ActionTx) error {
		v := values("my.echo")
		v.Description = "updated"
		updated, created, err := tx.CreateOrUpdate(ctx, "my.echo", v)
		if err != nil {
			return err
		}
		require.False(t, created)
		require.Equal(t, "updated", updated.Description())
		require.Equal(t, "std.echo", updated.Base())
		require.Equal(t, "proj-1", *updated.ProjectID())
		require.Nil(t, updated.TrustID())
		return nil
	})
	require.NoError(t, err)
}

func TestStore_DuplicateAndSystemGuard(t *testing.T) {
	repo := newTestStore(t).ActionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Transaction(ctx, func(tx domain.ActionTx) error {
		_, err := tx.SeedSystem(ctx, domain.Values{Name: "std.echo", Input: "output"})
		return err
	}))

	err := repo.Transaction(ctx, func(tx domain.ActionTx) error {
		_, err := tx.Create(ctx, values("std.echo"))
		return err
	})
	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)

	err = repo.Transaction(ctx, func(tx domain.ActionTx) error {
		_, _, err := tx.CreateOrUpdate(ctx, "std.echo", values("std.echo"))
		return err
	})
	var invalid *domain.InvalidActionError
	require.ErrorAs(t, err, &invalid)

	err = repo.Transaction(ctx, func(tx domain.ActionTx) error {
		return tx.Delete(ctx, "std.echo")
	})
	require.ErrorAs(t, err, &invalid)
}

func TestStore_RollbackOnError(t *testing.T) {
	repo := newTestStore(t).ActionRepository()
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx domain.ActionTx) error {
		if _, err := tx.Create(ctx, values("a.one")); err != nil {
			return err
		}
		_, err := tx.Create(ctx, values("a.one"))
		return err
	})
	require.Error(t, err)

	err = repo.Transaction(ctx, func(tx domain.ActionTx) error {
		got, err := tx.LoadByName(ctx, "a.one")
		require.Nil(t, got)
		return err
	})
	require.NoError(t, err)
}

func TestStore_ConcurrentUpsert(t *testing.T) {
	store := newTestStore(t)
	repo := store.ActionRepository()
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
	)
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Transaction(ctx, func(tx domain.ActionTx) error {
				v := values("race.echo")
				v.Description = fmt.Sprintf("writer %d", i)
				_, created, err := tx.CreateOrUpdate(ctx, "race.echo", v)
				if created {
					inserted.Add(1)
				}
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), inserted.Load())

	var count int
	require.NoError(t, store.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM actions WHERE name = $1", "race.echo").Scan(&count))
	require.Equal(t, 1, count)
}

func TestStore_ListFilters(t *testing.T) {
	repo := newTestStore(t).ActionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Transaction(ctx, func(tx domain.ActionTx) error {
		if _, err := tx.SeedSystem(ctx, domain.Values{Name: "std.noop"}); err != nil {
			return err
		}
		b := values("b.custom")
		b.ProjectID = ptr("proj-1")
		if _, err := tx.Create(ctx, b); err != nil {
			return err
		}
		a := values("a.custom")
		a.Tags = []string{"other"}
		_, err := tx.Create(ctx, a)
		return err
	}))

	custom := false
	require.NoError(t, repo.Transaction(ctx, func(tx domain.ActionTx) error {
		all, err := tx.List(ctx, domain.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "a.custom", all[0].Name())

		byTag, err := tx.List(ctx, domain.ListFilter{Tag: "echo", System: &custom})
		require.NoError(t, err)
		require.Len(t, byTag, 1)
		require.Equal(t, "b.custom", byTag[0].Name())

		limited, err := tx.List(ctx, domain.ListFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		return nil
	}))
}
