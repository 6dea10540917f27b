// Package tasks provides SQLite-backed persistence for spawn tasks.
package tasks

import "time"

// Task records one spawn request and its lifecycle.
type Task struct {
	ID        string
	Engine    string
	Project   string
	Prompt    string
	Status    string // pending, running, done, failed
	ProcessID string
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary provides a high-level view of a task for listing.
type Summary struct {
	ID        string
	Engine    string
	Project   string
	Status    string
	UpdatedAt time.Time
}
