// Package workers holds the periodic maintenance jobs run by cmd/worker.
package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"controlhub/internal/platform/config"
	"controlhub/internal/platform/metrics"
)

type StalledMarker interface {
	MarkStalled(ctx context.Context, cutoff, now int64) (int64, error)
}

type RunPruner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

type Jobs struct {
	automations StalledMarker
	runs        RunPruner
	cfg         config.WorkersConfig
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewJobs builds the job set.
func NewJobs(automations StalledMarker, runs RunPruner, cfg config.WorkersConfig, m *metrics.Metrics) *Jobs {
	return &Jobs{
		automations: automations,
		runs:        runs,
		cfg:         cfg,
		metrics:     m,
		now:         time.Now,
	}
}

// MarkStalled flips Running automations without a run in cfg.StalledAfter
// to Stalled.
func (j *Jobs) MarkStalled(ctx context.Context) (int64, error) {
	if j.cfg.StalledAfter <= 0 {
		return 0, nil
	}

	now := j.now()
	n, err := j.automations.MarkStalled(ctx, now.Add(-j.cfg.StalledAfter).Unix(), now.Unix())
	if err != nil {
		return 0, err
	}

	j.metrics.StalledMarked.Add(float64(n))
	log.Info().Int64("marked", n).Dur("stalled_after", j.cfg.StalledAfter).Msg("stalled sweep finished")
	return n, nil
}

// PruneRuns deletes runs started before cfg.RunRetention. Zero retention
// keeps everything.
func (j *Jobs) PruneRuns(ctx context.Context) (int64, error) {
	if j.cfg.RunRetention <= 0 {
		return 0, nil
	}

	n, err := j.runs.DeleteBefore(ctx, j.now().Add(-j.cfg.RunRetention).Unix())
	if err != nil {
		return 0, err
	}
	log.Info().Int64("deleted", n).Dur("retention", j.cfg.RunRetention).Msg("run retention finished")
	return n, nil
}

// Schedule registers both jobs on c using the configured schedules.
func (j *Jobs) Schedule(ctx context.Context, c *cron.Cron) error {
	if _, err := c.AddFunc(j.cfg.StalledSchedule, func() {
		if _, err := j.MarkStalled(ctx); err != nil {
			log.Error().Err(err).Msg("stalled sweep failed")
		}
	}); err != nil {
		return err
	}

	_, err := c.AddFunc(j.cfg.RetentionSchedule, func() {
		if _, err := j.PruneRuns(ctx); err != nil {
			log.Error().Err(err).Msg("run retention failed")
		}
	})
	return err
}
