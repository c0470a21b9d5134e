package application

// Event modes.
const (
	ModeCreate = "create"
	ModeRevise = "revise"
	ModeSeed   = "seed"
	ModeDelete = "delete"
)

// ActionEvent is published once per action after a registration, seed or
// delete commits.
type ActionEvent struct {
	Name      string
	ID        int64
	ProjectID *string
	Mode      string
}
