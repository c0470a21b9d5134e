// Package presentation renders actions for the CLI.
package presentation

import (
	"time"

	"github.com/zjrosen/actionreg/internal/actions/domain"
)

// ActionDTO represents a stored action for presentation.
type ActionDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	System      bool      `json:"is_system"`
	Base        string    `json:"base,omitempty"`
	Input       []string  `json:"input"`
	TrustID     *string   `json:"trust_id"`
	ProjectID   *string   `json:"project_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Definition  string    `json:"definition,omitempty"`
}

// FromDomainAction converts a domain action to a DTO. The definition text is
// only included when withDefinition is set.
func FromDomainAction(a *domain.Action, withDefinition bool) ActionDTO {
	dto := ActionDTO{
		ID:          a.ID(),
		Name:        a.Name(),
		Description: a.Description(),
		Tags:        a.Tags(),
		System:      a.IsSystem(),
		Base:        a.Base(),
		Input:       a.InputParams(),
		TrustID:     a.TrustID(),
		ProjectID:   a.ProjectID(),
		CreatedAt:   a.CreatedAt().UTC(),
		UpdatedAt:   a.UpdatedAt().UTC(),
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	if dto.Input == nil {
		dto.Input = []string{}
	}
	if withDefinition {
		dto.Definition = a.Definition()
	}
	return dto
}

// FromDomainActions converts a slice of domain actions to DTOs.
func FromDomainActions(actions []*domain.Action) []ActionDTO {
	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = FromDomainAction(a, false)
	}
	return dtos
}
