package todos

import (
	"errors"
	"time"
)

// Todo is a task owned by exactly one user. Ownership is enforced by
// scoping every query with the owner's id.
type Todo struct {
	ID          int64
	Title       string
	Description *string
	Completed   bool
	Priority    string
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Valid priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Stats aggregates a user's todo counts.
type Stats struct {
	Total     int64
	Completed int64
	Pending   int64
	High      int64
	Medium    int64
	Low       int64
}

// Sentinel errors for the todos module.
var (
	ErrNotFound = errors.New("todo not found")
	ErrNoFields = errors.New("no fields to update")
)
