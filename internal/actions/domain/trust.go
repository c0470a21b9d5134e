package domain

import "time"

// Trust is a delegated credential that lets deferred executions of an action
// act with the registering caller's authority. Its contents are opaque to the
// registry; only ID is persisted.
type Trust struct {
	ID        string
	Token     string
	ProjectID string
	UserID    string
	ExpiresAt time.Time
}
