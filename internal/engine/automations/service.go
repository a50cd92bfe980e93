package automations

import (
	"context"

	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

const (
	DefaultRunsLimit = 50
	MaxRunsLimit     = 200
)

type Store interface {
	ListByUser(ctx context.Context, userID string, filter repositories.AutomationFilter) ([]*models.Automation, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Automation, error)
}

type RunLister interface {
	ListByAutomation(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error)
}

type Service struct {
	store Store
	runs  RunLister
	cache *ListCache
}

func NewService(store Store, runs RunLister, cache *ListCache) *Service {
	return &Service{store: store, runs: runs, cache: cache}
}

// List returns the user's automations, served from cache when fresh.
func (s *Service) List(ctx context.Context, userID string, filter repositories.AutomationFilter) ([]*models.Automation, error) {
	if list, ok := s.cache.Get(userID, filter); ok {
		return list, nil
	}

	list, err := s.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	s.cache.Set(userID, filter, list)
	return list, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*models.Automation, error) {
	return s.store.GetForUser(ctx, id, userID)
}

// Runs lists an owned automation's runs newest first. The limit is clamped
// to [1, MaxRunsLimit] with DefaultRunsLimit for non-positive values.
func (s *Service) Runs(ctx context.Context, id, userID string, limit, offset int) ([]*models.AutomationRun, error) {
	if _, err := s.store.GetForUser(ctx, id, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}
	if offset < 0 {
		offset = 0
	}

	return s.runs.ListByAutomation(ctx, id, limit, offset)
}

func (s *Service) Invalidate(userID string) {
	s.cache.Invalidate(userID)
}
