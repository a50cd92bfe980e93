// Package ingest records n8n execution reports against automations.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

type AutomationStore interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Automation, error)
	ApplyRun(ctx context.Context, id string, u repositories.RunUpdate) error
}

type RunStore interface {
	Create(ctx context.Context, run *models.AutomationRun) error
	Summarize(ctx context.Context, automationID string) (models.RunSummary, error)
}

type Invalidator interface {
	Invalidate(userID string)
}

type Service struct {
	automations AutomationStore
	runs        RunStore
	cache       Invalidator
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(automations AutomationStore, runs RunStore, cache Invalidator, m *metrics.Metrics) *Service {
	return &Service{
		automations: automations,
		runs:        runs,
		cache:       cache,
		metrics:     m,
		now:         time.Now,
	}
}

// Ingest validates p, inserts the run and then refreshes the parent
// automation. The two writes are not transactional: once the run row is
// stored the call succeeds even if the automation update fails.
func (s *Service) Ingest(ctx context.Context, p *Payload) (*models.AutomationRun, error) {
	if err := p.Validate(); err != nil {
		s.metrics.WebhookDeliveries.WithLabelValues("invalid").Inc()
		return nil, err
	}

	automation, err := s.automations.GetForUser(ctx, p.AutomationID, p.UserID)
	if err != nil {
		s.metrics.WebhookDeliveries.WithLabelValues("unknown_automation").Inc()
		return nil, err
	}

	now := s.now()
	run := buildRun(p, now)

	if err := s.runs.Create(ctx, run); err != nil {
		s.metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("insert run: %w", err)
	}

	if err := s.refresh(ctx, automation, run, now); err != nil {
		s.metrics.UpdateFailures.Inc()
		log.Error().Err(err).
			Str("automation_id", automation.ID).
			Str("run_id", run.ID).
			Str("execution_id", p.ExecutionID).
			Msg("run stored but automation update failed")
	}

	s.cache.Invalidate(automation.UserID)
	s.metrics.WebhookDeliveries.WithLabelValues("accepted").Inc()
	return run, nil
}

func (s *Service) refresh(ctx context.Context, a *models.Automation, run *models.AutomationRun, now time.Time) error {
	summary, err := s.runs.Summarize(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("summarize runs: %w", err)
	}

	return s.automations.ApplyRun(ctx, a.ID, repositories.RunUpdate{
		LastRunAt:     run.StartedAt,
		LastRunStatus: run.Status,
		Summary:       summary,
		Status:        NextStatus(a.Status, run.Status),
		UpdatedAt:     now.Unix(),
	})
}

// NextStatus returns the automation status implied by a run, or nil when the
// run leaves it unchanged. A Stopped automation stays Stopped.
func NextStatus(current models.AutomationStatus, runStatus string) *models.AutomationStatus {
	var next models.AutomationStatus
	switch runStatus {
	case models.RunError:
		next = models.StatusError
	case models.RunRunning, models.RunSuccess:
		if current != models.StatusError && current != models.StatusStalled {
			return nil
		}
		next = models.StatusRunning
	default:
		return nil
	}
	if next == current {
		return nil
	}
	return &next
}

func buildRun(p *Payload, now time.Time) *models.AutomationRun {
	run := &models.AutomationRun{
		ID:           "run_" + uuid.NewString(),
		AutomationID: p.AutomationID,
		Status:       p.Status,
		StartedAt:    now.Unix(),
		CreatedAt:    now.Unix(),
	}

	if p.ExecutionID != "" {
		id := p.ExecutionID
		run.ExecutionID = &id
	}
	if p.StartedAt != nil && !p.StartedAt.IsZero() {
		run.StartedAt = p.StartedAt.Unix()
	}
	if p.FinishedAt != nil && !p.FinishedAt.IsZero() {
		finished := p.FinishedAt.Unix()
		run.FinishedAt = &finished
		// A completion-only report that arrives late starts no later than it
		// finished, so the duration is never negative.
		if finished < run.StartedAt {
			run.StartedAt = finished
		}
	}
	if p.ErrorMessage != "" {
		msg := p.ErrorMessage
		run.ErrorMessage = &msg
	}
	if len(p.TriggerData) > 0 && string(p.TriggerData) != "null" {
		run.TriggerData = p.TriggerData
	}
	return run
}
