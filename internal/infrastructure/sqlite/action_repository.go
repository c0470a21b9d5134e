package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
)

// Compile-time interface assertions.
var (
	_ domain.ActionRepository = (*actionRepository)(nil)
	_ domain.ActionTx         = (*actionTx)(nil)
)

const insertColumns = `name, description, tags, definition, spec, is_system, input, trust_id, project_id, created_at, updated_at`

// upsertSet replaces the mutable fields of an existing row. Security fields
// are only overwritten when the new values carry them.
const upsertSet = `
	description = excluded.description,
	tags        = excluded.tags,
	definition  = excluded.definition,
	spec        = excluded.spec,
	input       = excluded.input,
	trust_id    = COALESCE(excluded.trust_id, actions.trust_id),
	project_id  = COALESCE(excluded.project_id, actions.project_id),
	updated_at  = excluded.updated_at`

var (
	createSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
		RETURNING ` + actionColumns

	upsertCustomSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET` + upsertSet + `
		WHERE actions.is_system = 0
		RETURNING ` + actionColumns

	upsertSystemSQL = `INSERT INTO actions (` + insertColumns + `)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET` + upsertSet + `
		WHERE actions.is_system = 1
		RETURNING ` + actionColumns

	loadByNameSQL = `SELECT ` + actionColumns + ` FROM actions WHERE name = ?`

	existsSQL = `SELECT EXISTS (SELECT 1 FROM actions WHERE name = ?)`
)

// actionRepository implements domain.ActionRepository on SQLite.
type actionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func newActionRepository(db *sql.DB) *actionRepository {
	return &actionRepository{db: db, now: time.Now}
}

// Transaction runs fn inside one BEGIN IMMEDIATE transaction.
func (r *actionRepository) Transaction(ctx context.Context, fn func(tx domain.ActionTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StoreError{Op: "begin", Err: err}
	}

	done := false
	defer func() {
		if done {
			return
		}
		rollback(sqlTx)
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(&actionTx{tx: sqlTx, now: r.now}); err != nil {
		done = true
		rollback(sqlTx)
		return err
	}

	done = true
	if err := ctx.Err(); err != nil {
		rollback(sqlTx)
		return &domain.StoreError{Op: "commit", Err: err}
	}
	if err := sqlTx.Commit(); err != nil {
		return &domain.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Close is a no-op; the owning DB closes the pool.
func (r *actionRepository) Close() error {
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Warn(log.CatDB, "Rollback failed", "error", err)
	}
}

// actionTx implements domain.ActionTx bound to one sql.Tx.
type actionTx struct {
	tx  *sql.Tx
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
	m, err := scanAction(t.tx.QueryRowContext(ctx, loadByNameSQL, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}
	action, err := m.toDomain()
	if err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}
	return action, nil
}

// CreateOrUpdate checks for an existing row before the upsert. The
// transaction holds the database write lock, so the check stays valid.
func (t *actionTx) CreateOrUpdate(ctx context.Context, name string, values domain.Values) (*domain.Action, bool, error) {
	var exists bool
	if err := t.tx.QueryRowContext(ctx, existsSQL, name).Scan(&exists); err != nil {
		return nil, false, &domain.StoreError{Op: "upsert", Err: err}
	}

	action, err := t.write(ctx, upsertCustomSQL, name, values)
	if errors.Is(err, sql.ErrNoRows) {
		// The conflict row exists but the WHERE guard rejected the update.
		return nil, false, domain.NewSystemActionError(name)
	}
	if err != nil {
		return nil, false, &domain.StoreError{Op: "upsert", Err: err}
	}
	log.Debug(log.CatDB, "Upserted action", "name", action.Name(), "id", action.ID(), "created", !exists)
	return action, !exists, nil
}

func (t *actionTx) SeedSystem(ctx context.Context, values domain.Values) (*domain.Action, error) {
	action, err := t.write(ctx, upsertSystemSQL, values.Name, values)
	if errors.Is(err, sql.ErrNoRows) {
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
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM actions WHERE name = ? AND is_system = 0`, name); err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	log.Debug(log.CatDB, "Deleted action", "name", name)
	return nil
}

func (t *actionTx) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Action, error) {
	var (
		where []string
		args  []any
	)
	if filter.System != nil {
		where = append(where, "is_system = ?")
		args = append(args, boolToInt(*filter.System))
	}
	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(actions.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}

	query := `SELECT ` + actionColumns + ` FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var actions []*domain.Action
	for rows.Next() {
		m, err := scanAction(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "list", Err: err}
		}
		action, err := m.toDomain()
		if err != nil {
			return nil, &domain.StoreError{Op: "list", Err: err}
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return actions, nil
}

// write executes an insert-returning statement for values stored under name.
func (t *actionTx) write(ctx context.Context, query, name string, values domain.Values) (*domain.Action, error) {
	enc, err := encodeValues(values)
	if err != nil {
		return nil, err
	}
	now := t.now().Unix()

	m, err := scanAction(t.tx.QueryRowContext(ctx, query,
		name,
		enc.Description,
		enc.Tags,
		values.Definition,
		enc.Spec,
		values.Input,
		enc.TrustID,
		enc.ProjectID,
		now,
		now,
	))
	if err != nil {
		return nil, err
	}
	return m.toDomain()
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
