package todos

import (
	"context"
)

// Service wraps todo business rules on top of the repository.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the user's todos with filters applied.
func (s *Service) List(ctx context.Context, userID int64, filter ListFilter) ([]Todo, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, userID, filter)
}

// Create adds a todo, defaulting priority to medium.
func (s *Service) Create(ctx context.Context, userID int64, title string, description *string, priority string) (*Todo, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	return s.repo.Create(ctx, userID, title, description, priority)
}

// Get fetches one of the user's todos.
func (s *Service) Get(ctx context.Context, id, userID int64) (*Todo, error) {
	return s.repo.Get(ctx, id, userID)
}

// Update applies a partial update to one of the user's todos.
func (s *Service) Update(ctx context.Context, id, userID int64, update Update) (*Todo, error) {
	return s.repo.Update(ctx, id, userID, update)
}

// Delete removes one of the user's todos.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.Delete(ctx, id, userID)
}

// Stats aggregates the user's todo counts.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	return s.repo.Stats(ctx, userID)
}
