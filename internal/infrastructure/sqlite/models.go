package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zjrosen/actionreg/internal/actions/domain"
)

// actionColumns is the column list every action query selects, in scan order.
const actionColumns = `id, name, description, tags, definition, spec, is_system, input, trust_id, project_id, created_at, updated_at`

// actionModel is the row representation of an action.
type actionModel struct {
	ID          int64
	Name        string
	Description sql.NullString
	Tags        sql.NullString
	Definition  string
	Spec        string
	IsSystem    int64
	Input       string
	TrustID     sql.NullString
	ProjectID   sql.NullString
	CreatedAt   int64
	UpdatedAt   int64
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*actionModel, error) {
	var m actionModel
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Tags, &m.Definition, &m.Spec,
		&m.IsSystem, &m.Input, &m.TrustID, &m.ProjectID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// toDomain converts the row to a domain Action.
func (m *actionModel) toDomain() (*domain.Action, error) {
	var tags []string
	if m.Tags.Valid && m.Tags.String != "" {
		if err := json.Unmarshal([]byte(m.Tags.String), &tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", m.Name, err)
		}
	}

	spec, err := domain.DecodeSpec([]byte(m.Spec))
	if err != nil {
		return nil, fmt.Errorf("decode spec for %s: %w", m.Name, err)
	}

	return domain.ReconstituteAction(
		m.ID,
		m.Name,
		m.Description.String,
		tags,
		m.Definition,
		spec,
		m.IsSystem == 1,
		m.Input,
		nullableString(m.TrustID),
		nullableString(m.ProjectID),
		time.Unix(m.CreatedAt, 0),
		time.Unix(m.UpdatedAt, 0),
	), nil
}

// encodedValues holds Values in their column encoding.
type encodedValues struct {
	Description sql.NullString
	Tags        sql.NullString
	Spec        string
	TrustID     sql.NullString
	ProjectID   sql.NullString
}

func encodeValues(v domain.Values) (encodedValues, error) {
	enc := encodedValues{
		Description: sql.NullString{String: v.Description, Valid: v.Description != ""},
		TrustID:     toNullString(v.TrustID),
		ProjectID:   toNullString(v.ProjectID),
		Spec:        "{}",
	}
	if len(v.Tags) > 0 {
		b, err := json.Marshal(v.Tags)
		if err != nil {
			return enc, fmt.Errorf("encode tags: %w", err)
		}
		enc.Tags = sql.NullString{String: string(b), Valid: true}
	}
	if v.Spec != nil {
		b, err := json.Marshal(v.Spec)
		if err != nil {
			return enc, fmt.Errorf("encode spec: %w", err)
		}
		enc.Spec = string(b)
	}
	return enc, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
