package domain

import "context"

// ListFilter provides filtering options for listing actions.
type ListFilter struct {
	// System filters on the system flag. If nil, both kinds are included.
	System *bool

	// Tag restricts results to actions carrying this tag. Empty means any.
	Tag string

	// ProjectID restricts results to one project. Empty means any.
	ProjectID string

	// Limit restricts the number of actions returned. 0 means no limit.
	Limit int
}

// ActionRepository is the transactional action store. Every read and write
// happens inside Transaction; the repository never opens a transaction on its
// own behalf.
type ActionRepository interface {
	// Transaction begins a transaction and passes a bound ActionTx to fn.
	// It commits when fn returns nil and rolls back when fn returns an error,
	// panics, or ctx is cancelled. fn's error is returned unchanged.
	Transaction(ctx context.Context, fn func(tx ActionTx) error) error

	// Close releases any resources held by the repository.
	Close() error
}

// ActionTx exposes the store operations available inside one transaction.
// Writes on the same name are serialized by the backend.
type ActionTx interface {
	// Create inserts a new custom action.
	// Returns DuplicateNameError if the name already exists.
	Create(ctx context.Context, values Values) (*Action, error)

	// LoadByName returns the action with the given name, or nil, nil when
	// absent. Backends with row locks lock the row for the rest of the
	// transaction.
	LoadByName(ctx context.Context, name string) (*Action, error)

	// CreateOrUpdate creates the action if absent and otherwise replaces its
	// mutable fields, as one atomic upsert. created reports whether this call
	// inserted the row. Returns InvalidActionError when the existing row is a
	// system action.
	CreateOrUpdate(ctx context.Context, name string, values Values) (action *Action, created bool, err error)

	// SeedSystem creates or refreshes a system action. Returns
	// DuplicateNameError if a custom action already owns the name.
	SeedSystem(ctx context.Context, values Values) (*Action, error)

	// Delete removes a custom action. Returns NotFoundError when absent and
	// InvalidActionError for system actions.
	Delete(ctx context.Context, name string) error

	// List returns actions matching filter ordered by name.
	List(ctx context.Context, filter ListFilter) ([]*Action, error)
}
