// Package stats computes dashboard aggregates.
package stats

import (
	"context"
	"time"

	"controlhub/internal/platform/models"
)

type AutomationCounter interface {
	StatusCounts(ctx context.Context, userID string) (map[models.AutomationStatus]int, float64, error)
}

type RunCounter interface {
	CountForUser(ctx context.Context, userID string, since int64, status string) (int, error)
}

// Overview is the dashboard header for one user.
type Overview struct {
	TotalAutomations int     `json:"total_automations"`
	Running          int     `json:"running"`
	Stopped          int     `json:"stopped"`
	Error            int     `json:"error"`
	Stalled          int     `json:"stalled"`
	TotalRuns        int     `json:"total_runs"`
	RunsLast24h      int     `json:"runs_last_24h"`
	FailedLast24h    int     `json:"failed_last_24h"`
	AvgSuccessRate   float64 `json:"avg_success_rate"`
}

type Service struct {
	automations AutomationCounter
	runs        RunCounter
	now         func() time.Time
}

func NewService(automations AutomationCounter, runs RunCounter) *Service {
	return &Service{automations: automations, runs: runs, now: time.Now}
}

func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	counts, avgRate, err := s.automations.StatusCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &Overview{
		Running:        counts[models.StatusRunning],
		Stopped:        counts[models.StatusStopped],
		Error:          counts[models.StatusError],
		Stalled:        counts[models.StatusStalled],
		AvgSuccessRate: avgRate,
	}
	for _, n := range counts {
		out.TotalAutomations += n
	}

	since := s.now().Add(-24 * time.Hour).Unix()
	if out.TotalRuns, err = s.runs.CountForUser(ctx, userID, 0, ""); err != nil {
		return nil, err
	}
	if out.RunsLast24h, err = s.runs.CountForUser(ctx, userID, since, ""); err != nil {
		return nil, err
	}
	if out.FailedLast24h, err = s.runs.CountForUser(ctx, userID, since, models.RunError); err != nil {
		return nil, err
	}
	return out, nil
}
