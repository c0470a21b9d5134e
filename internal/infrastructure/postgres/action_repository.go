package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
)

// Compile-time interface assertions.
var (
	_ domain.ActionRepository = (*actionRepository)(nil)
	_ domain.ActionTx         = (*actionTx)(nil)
)

const actionColumns = `id, name, description, tags, definition, spec, is_system, input, trust_id, project_id, created_at, updated_at`

const insertColumns = `name, description, tags, definition, spec, is_system, input, trust_id, project_id, created_at, updated_at`

const upsertSet = `
	description = EXCLUDED.description,
	tags        = EXCLUDED.tags,
	definition  = EXCLUDED.definition,
	spec        = EXCLUDED.spec,
	input       = EXCLUDED.input,
	trust_id    = COALESCE(EXCLUDED.trust_id, actions.trust_id),
	project_id  = COALESCE(EXCLUDED.project_id, actions.project_id),
	updated_at  = EXCLUDED.updated_at`

var (
	createSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9, $9)
		RETURNING ` + actionColumns

	upsertCustomSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9, $9)
		ON CONFLICT (name) DO UPDATE SET` + upsertSet + `
		WHERE actions.is_system = FALSE
		RETURNING ` + actionColumns + `, (xmax = 0) AS inserted`

	upsertSystemSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, $8, $9, $9)
		ON CONFLICT (name) DO UPDATE SET` + upsertSet + `
		WHERE actions.is_system = TRUE
		RETURNING ` + actionColumns

	loadForUpdateSQL = `SELECT ` + actionColumns + ` FROM actions WHERE name = $1 FOR UPDATE`
)

type actionRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func newActionRepository(pool *pgxpool.Pool) *actionRepository {
	return &actionRepository{pool: pool, now: time.Now}
}

// Transaction runs fn inside one READ COMMITTED transaction.
func (r *actionRepository) Transaction(ctx context.Context, fn func(tx domain.ActionTx) error) error {
	pgTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return &domain.StoreError{Op: "begin", Err: err}
	}

	done := false
	defer func() {
		if done {
			return
		}
		rollback(ctx, pgTx)
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(&actionTx{tx: pgTx, now: r.now}); err != nil {
		done = true
		rollback(ctx, pgTx)
		return err
	}

	done = true
	if err := ctx.Err(); err != nil {
		rollback(ctx, pgTx)
		return &domain.StoreError{Op: "commit", Err: err}
	}
	if err := pgTx.Commit(ctx); err != nil {
		return &domain.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Close is a no-op; the owning Store closes the pool.
func (r *actionRepository) Close() error {
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	// Rollback must still reach the server after ctx is cancelled.
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Warn(log.CatDB, "Rollback failed", "error", err)
	}
}

type actionTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *actionTx) Create(ctx context.Context, values domain.Values) (*domain.Action, error) {
	action, err := t.write(ctx, createSQL, values.Name, values)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &domain.DuplicateNameError{Name: values.Name}
		}
		return nil, &domain.StoreError{Op: "create", Err: err}
	}
	log.Debug(log.CatDB, "Created action", "name", action.Name(), "id", action.ID())
	return action, nil
}

func (t *actionTx) LoadByName(ctx context.Context, name string) (*domain.Action, error) {
	action, err := scanAction(t.tx.QueryRow(ctx, loadForUpdateSQL, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}
	return action, nil
}

// CreateOrUpdate reports created from the upsert itself: xmax is zero only
// for a freshly inserted row version.
func (t *actionTx) CreateOrUpdate(ctx context.Context, name string, values domain.Values) (*domain.Action, bool, error) {
	var inserted bool
	action, err := t.write(ctx, upsertCustomSQL, name, values, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, domain.NewSystemActionError(name)
	}
	if err != nil {
		return nil, false, &domain.StoreError{Op: "upsert", Err: err}
	}
	log.Debug(log.CatDB, "Upserted action", "name", action.Name(), "id", action.ID(), "created", inserted)
	return action, inserted, nil
}

func (t *actionTx) SeedSystem(ctx context.Context, values domain.Values) (*domain.Action, error) {
	action, err := t.write(ctx, upsertSystemSQL, values.Name, values)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.DuplicateNameError{Name: values.Name}
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "seed", Err: err}
	}
	return action, nil
}

func (t *actionTx) Delete(ctx context.Context, name string) error {
	existing, err := t.LoadByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return &domain.NotFoundError{Name: name}
	}
	if existing.IsSystem() {
		return domain.NewSystemActionError(name)
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM actions WHERE name = $1 AND is_system = FALSE`, name); err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (t *actionTx) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Action, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.System != nil {
		where = append(where, "is_system = "+arg(*filter.System))
	}
	if filter.Tag != "" {
		where = append(where, arg(filter.Tag)+" = ANY(tags)")
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = "+arg(filter.ProjectID))
	}

	query := `SELECT ` + actionColumns + ` FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	actions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Action, error) {
		return scanAction(row)
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return actions, nil
}

// write runs an insert-returning query. extra receives any columns the query
// returns after actionColumns.
func (t *actionTx) write(ctx context.Context, query, name string, values domain.Values, extra ...any) (*domain.Action, error) {
	tags := values.Tags
	if tags == nil {
		tags = []string{}
	}
	spec := values.Spec
	if spec == nil {
		spec = map[string]any{}
	}
	var description *string
	if values.Description != "" {
		description = &values.Description
	}

	return scanAction(t.tx.QueryRow(ctx, query,
		name,
		description,
		tags,
		values.Definition,
		spec,
		values.Input,
		values.TrustID,
		values.ProjectID,
		t.now().UTC(),
	), extra...)
}

func scanAction(row pgx.Row, extra ...any) (*domain.Action, error) {
	var (
		id          int64
		name        string
		description *string
		tags        []string
		definition  string
		spec        []byte
		isSystem    bool
		input       string
		trustID     *string
		projectID   *string
		createdAt   time.Time
		updatedAt   time.Time
	)
	dest := append([]any{&id, &name, &description, &tags, &definition, &spec, &isSystem, &input, &trustID, &projectID, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	decoded, err := domain.DecodeSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("decode spec for %s: %w", name, err)
	}
	var desc string
	if description != nil {
		desc = *description
	}
	if len(tags) == 0 {
		tags = nil
	}
	return domain.ReconstituteAction(id, name, desc, tags, definition, decoded, isSystem, input, trustID, projectID, createdAt, updatedAt), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
