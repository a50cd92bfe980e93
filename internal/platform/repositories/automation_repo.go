package repositories

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"controlhub/internal/pkg/errors"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/models"
)

var automationColumns = []string{
	"id", "user_id", "client_id", "name", "status", "last_run_at", "last_run_status",
	"avg_duration", "success_rate", "run_webhook_url", "stop_webhook_url", "created_at", "updated_at",
}

type AutomationFilter struct {
	Status   models.AutomationStatus
	ClientID string
}

// RunUpdate is the set of last-run fields written after a run is ingested.
type RunUpdate struct {
	LastRunAt     int64
	LastRunStatus string
	Summary       models.RunSummary
	Status        *models.AutomationStatus
	UpdatedAt     int64
}

type AutomationRepository struct {
	db *database.DB
}

func NewAutomationRepository(db *database.DB) *AutomationRepository {
	return &AutomationRepository{db: db}
}

func (r *AutomationRepository) Create(ctx context.Context, a *models.Automation) error {
	query, args, err := r.db.Builder().
		Insert("automations").
		Columns(automationColumns...).
		Values(a.ID, a.UserID, nullable(a.ClientID), a.Name, string(a.Status), nullableInt(a.LastRunAt),
			nullable(a.LastRunStatus), a.AvgDuration, a.SuccessRate, nullable(a.RunWebhookURL),
			nullable(a.StopWebhookURL), a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetForUser returns the automation only when userID owns it.
func (r *AutomationRepository) GetForUser(ctx context.Context, id, userID string) (*models.Automation, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "user_id": userID})
}

func (r *AutomationRepository) getOne(ctx context.Context, where sq.Eq) (*models.Automation, error) {
	query, args, err := r.db.Builder().Select(automationColumns...).From("automations").Where(where).ToSql()
	if err != nil {
		return nil, err
	}

	a, err := scanAutomation(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("automation %v: %w", where["id"], errors.ErrNotFound)
	}
	return a, err
}

func (r *AutomationRepository) ListByUser(ctx context.Context, userID string, filter AutomationFilter) ([]*models.Automation, error) {
	where := sq.Eq{"user_id": userID}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	if filter.ClientID != "" {
		where["client_id"] = filter.ClientID
	}

	query, args, err := r.db.Builder().
		Select(automationColumns...).
		From("automations").
		Where(where).
		OrderBy("name ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	automations := []*models.Automation{}
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	return automations, rows.Err()
}

func (r *AutomationRepository) UpdateStatus(ctx context.Context, id string, status models.AutomationStatus, updatedAt int64) error {
	query, args, err := r.db.Builder().
		Update("automations").
		Set("status", string(status)).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, id, query, args)
}

// ApplyRun writes the last-run fields and aggregates after a run insert.
func (r *AutomationRepository) ApplyRun(ctx context.Context, id string, u RunUpdate) error {
	b := r.db.Builder().
		Update("automations").
		Set("last_run_at", u.LastRunAt).
		Set("last_run_status", u.LastRunStatus).
		Set("avg_duration", u.Summary.AvgDuration).
		Set("success_rate", u.Summary.SuccessRate).
		Set("updated_at", u.UpdatedAt)
	if u.Status != nil {
		b = b.Set("status", string(*u.Status))
	}

	query, args, err := b.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, id, query, args)
}

// Delete removes the automation and its runs in one transaction.
func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	runsQuery, runsArgs, err := r.db.Builder().Delete("automation_runs").Where(sq.Eq{"automation_id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, runsQuery, runsArgs...); err != nil {
		return err
	}

	query, args, err := r.db.Builder().Delete("automations").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("automation %s: %w", id, errors.ErrNotFound)
	}

	return tx.Commit()
}

// MarkStalled flips Running automations to Stalled when neither their last
// run nor their last status change is at or after cutoff.
func (r *AutomationRepository) MarkStalled(ctx context.Context, cutoff, now int64) (int64, error) {
	query, args, err := r.db.Builder().
		Update("automations").
		Set("status", string(models.StatusStalled)).
		Set("updated_at", now).
		Where(sq.Eq{"status": string(models.StatusRunning)}).
		Where("(last_run_at IS NULL OR last_run_at < ?)", cutoff).
		Where(sq.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StatusCounts returns the number of the user's automations per status and
// the mean success rate across them.
func (r *AutomationRepository) StatusCounts(ctx context.Context, userID string) (map[models.AutomationStatus]int, float64, error) {
	query, args, err := r.db.Builder().
		Select("status", "COUNT(*)", "COALESCE(SUM(success_rate), 0)").
		From("automations").
		Where(sq.Eq{"user_id": userID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := make(map[models.AutomationStatus]int)
	var total int
	var rateSum float64
	for rows.Next() {
		var status string
		var n int
		var sum float64
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return nil, 0, err
		}
		counts[models.AutomationStatus(status)] = n
		total += n
		rateSum += sum
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var avgRate float64
	if total > 0 {
		avgRate = rateSum / float64(total)
	}
	return counts, avgRate, nil
}

func (r *AutomationRepository) execOne(ctx context.Context, id, query string, args []interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("automation %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

func scanAutomation(s scanner) (*models.Automation, error) {
	var a models.Automation
	var status string
	var clientID, lastRunStatus, runURL, stopURL sql.NullString
	var lastRunAt sql.NullInt64

	err := s.Scan(
		&a.ID,
		&a.UserID,
		&clientID,
		&a.Name,
		&status,
		&lastRunAt,
		&lastRunStatus,
		&a.AvgDuration,
		&a.SuccessRate,
		&runURL,
		&stopURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = models.AutomationStatus(status)
	a.ClientID = stringPtr(clientID)
	a.LastRunAt = int64Ptr(lastRunAt)
	a.LastRunStatus = stringPtr(lastRunStatus)
	a.RunWebhookURL = stringPtr(runURL)
	a.StopWebhookURL = stringPtr(stopURL)

	return &a, nil
}
