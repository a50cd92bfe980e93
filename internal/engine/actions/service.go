// Package actions forwards user-triggered run, stop, restart and delete
// requests to the automation's n8n webhooks and records the outcome.
package actions

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "controlhub/internal/pkg/errors"
	"controlhub/internal/platform/audit"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/models"
)

type Action string

const (
	Run     Action = "run"
	Stop    Action = "stop"
	Restart Action = "restart"
	Delete  Action = "delete"
)

func (a Action) auditName() string {
	switch a {
	case Run:
		return audit.ActionRun
	case Stop:
		return audit.ActionStop
	case Restart:
		return audit.ActionRestart
	default:
		return audit.ActionDelete
	}
}

// ErrNoWebhook is returned when the automation lacks the URL an action needs.
var ErrNoWebhook = errors.New("automation has no webhook url for this action")

type Store interface {
	GetForUser(ctx context.Context, id, userID string) (*models.Automation, error)
	UpdateStatus(ctx context.Context, id string, status models.AutomationStatus, updatedAt int64) error
	Delete(ctx context.Context, id string) error
}

type Firer interface {
	Fire(ctx context.Context, url string, req TriggerRequest) (string, error)
}

type Auditor interface {
	Log(entry audit.Entry)
}

type Invalidator interface {
	Invalidate(userID string)
}

// Request identifies the caller of an action.
type Request struct {
	AutomationID string
	UserID       string
	IPAddress    string
	UserAgent    string
}

type Service struct {
	store   Store
	trigger Firer
	audit   Auditor
	cache   Invalidator
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, trigger Firer, auditor Auditor, cache Invalidator, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		trigger: trigger,
		audit:   auditor,
		cache:   cache,
		metrics: m,
		now:     time.Now,
	}
}

// Perform executes action for req. It returns the updated automation, or nil
// after a delete.
func (s *Service) Perform(ctx context.Context, action Action, req Request) (*models.Automation, error) {
	automation, deliveries, err := s.perform(ctx, action, req)
	s.metrics.Actions.WithLabelValues(string(action), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"deliveries": deliveries}
	if automation != nil {
		meta["status"] = string(automation.Status)
	}
	s.audit.Log(audit.Entry{
		UserID:       req.UserID,
		Action:       action.auditName(),
		ResourceType: "automation",
		ResourceID:   req.AutomationID,
		Metadata:     meta,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	})
	s.cache.Invalidate(req.UserID)

	return automation, nil
}

func (s *Service) perform(ctx context.Context, action Action, req Request) (*models.Automation, []string, error) {
	automation, err := s.store.GetForUser(ctx, req.AutomationID, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	switch action {
	case Run:
		return s.fireAndSet(ctx, automation, req, Run, automation.RunWebhookURL, models.StatusRunning)
	case Stop:
		return s.fireAndSet(ctx, automation, req, Stop, automation.StopWebhookURL, models.StatusStopped)
	case Restart:
		return s.restart(ctx, automation, req)
	case Delete:
		return s.delete(ctx, automation, req)
	}
	return nil, nil, errors.New("unknown action " + string(action))
}

func (s *Service) fireAndSet(ctx context.Context, a *models.Automation, req Request, action Action, url *string, status models.AutomationStatus) (*models.Automation, []string, error) {
	if url == nil || *url == "" {
		return nil, nil, ErrNoWebhook
	}

	delivery, err := s.fire(ctx, a, req, action, *url)
	if err != nil {
		return nil, nil, err
	}

	if err := s.setStatus(ctx, a, status); err != nil {
		return nil, nil, err
	}
	return a, []string{delivery}, nil
}

func (s *Service) restart(ctx context.Context, a *models.Automation, req Request) (*models.Automation, []string, error) {
	if a.StopWebhookURL == nil || *a.StopWebhookURL == "" || a.RunWebhookURL == nil || *a.RunWebhookURL == "" {
		return nil, nil, ErrNoWebhook
	}

	stopID, err := s.fire(ctx, a, req, Stop, *a.StopWebhookURL)
	if err != nil {
		return nil, nil, err
	}

	runID, err := s.fire(ctx, a, req, Run, *a.RunWebhookURL)
	if err != nil {
		// The workflow is stopped upstream even though the restart failed.
		if setErr := s.setStatus(ctx, a, models.StatusStopped); setErr != nil {
			log.Error().Err(setErr).Str("automation_id", a.ID).Msg("failed to record stop after failed restart")
		}
		return nil, nil, err
	}

	if err := s.setStatus(ctx, a, models.StatusRunning); err != nil {
		return nil, nil, err
	}
	return a, []string{stopID, runID}, nil
}

// delete stops a running automation upstream before removing it. A failed
// stop aborts the delete.
func (s *Service) delete(ctx context.Context, a *models.Automation, req Request) (*models.Automation, []string, error) {
	var deliveries []string
	if a.Status == models.StatusRunning && a.StopWebhookURL != nil && *a.StopWebhookURL != "" {
		id, err := s.fire(ctx, a, req, Stop, *a.StopWebhookURL)
		if err != nil {
			return nil, nil, err
		}
		deliveries = append(deliveries, id)
	}

	if err := s.store.Delete(ctx, a.ID); err != nil {
		return nil, nil, err
	}
	return nil, deliveries, nil
}

func (s *Service) fire(ctx context.Context, a *models.Automation, req Request, action Action, url string) (string, error) {
	delivery, err := s.trigger.Fire(ctx, url, TriggerRequest{
		AutomationID: a.ID,
		Action:       string(action),
		RequestedBy:  req.UserID,
		RequestedAt:  s.now().Unix(),
	})
	if err != nil {
		log.Warn().Err(err).
			Str("automation_id", a.ID).
			Str("action", string(action)).
			Str("delivery", delivery).
			Msg("n8n trigger failed")
	}
	return delivery, err
}

func (s *Service) setStatus(ctx context.Context, a *models.Automation, status models.AutomationStatus) error {
	now := s.now().Unix()
	if err := s.store.UpdateStatus(ctx, a.ID, status, now); err != nil {
		return err
	}
	a.Status = status
	a.UpdatedAt = now
	return nil
}

func outcome(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoWebhook):
		return "no_webhook"
	case errors.As(err, &upstream):
		return "upstream_error"
	case apperrors.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
