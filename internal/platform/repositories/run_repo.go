package repositories

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"controlhub/internal/platform/database"
	"controlhub/internal/platform/models"
)

var runColumns = []string{
	"id", "automation_id", "execution_id", "status", "trigger_data",
	"started_at", "finished_at", "error_message", "created_at",
}

type RunRepository struct {
	db *database.DB
}

func NewRunRepository(db *database.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(ctx context.Context, run *models.AutomationRun) error {
	var triggerData interface{}
	if len(run.TriggerData) > 0 {
		triggerData = string(run.TriggerData)
	}

	query, args, err := r.db.Builder().
		Insert("automation_runs").
		Columns(runColumns...).
		Values(run.ID, run.AutomationID, nullable(run.ExecutionID), run.Status, triggerData,
			run.StartedAt, nullableInt(run.FinishedAt), nullable(run.ErrorMessage), run.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *RunRepository) ListByAutomation(ctx context.Context, automationID string, limit, offset int) ([]*models.AutomationRun, error) {
	query, args, err := r.db.Builder().
		Select(runColumns...).
		From("automation_runs").
		Where(sq.Eq{"automation_id": automationID}).
		OrderBy("started_at DESC", "created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*models.AutomationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Summarize aggregates an automation's runs. Success rate is computed over
// terminal runs only; average duration over runs that reported finished_at.
func (r *RunRepository) Summarize(ctx context.Context, automationID string) (models.RunSummary, error) {
	query, args, err := r.db.Builder().
		Select(
			"COUNT(*)",
			"COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0)",
			"COALESCE(SUM(CASE WHEN status IN ('success', 'error', 'canceled') THEN 1 ELSE 0 END), 0)",
			"COALESCE(AVG(CASE WHEN finished_at IS NOT NULL THEN finished_at - started_at END), 0)",
		).
		From("automation_runs").
		Where(sq.Eq{"automation_id": automationID}).
		ToSql()
	if err != nil {
		return models.RunSummary{}, err
	}

	var summary models.RunSummary
	var succeeded, terminal int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&summary.TotalRuns, &succeeded, &terminal, &summary.AvgDuration)
	if err != nil {
		return models.RunSummary{}, err
	}

	if terminal > 0 {
		summary.SuccessRate = float64(succeeded) / float64(terminal) * 100
	}
	return summary, nil
}

// CountForUser counts runs of the user's automations started at or after
// since. An empty status counts every run.
func (r *RunRepository) CountForUser(ctx context.Context, userID string, since int64, status string) (int, error) {
	where := sq.Eq{"a.user_id": userID}
	if status != "" {
		where["r.status"] = status
	}

	query, args, err := r.db.Builder().
		Select("COUNT(*)").
		From("automation_runs r").
		Join("automations a ON a.id = r.automation_id").
		Where(where).
		Where(sq.GtOrEq{"r.started_at": since}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *RunRepository) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	query, args, err := r.db.Builder().
		Delete("automation_runs").
		Where(sq.Lt{"started_at": cutoff}).
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

func scanRun(s scanner) (*models.AutomationRun, error) {
	var run models.AutomationRun
	var executionID, triggerData, errorMessage sql.NullString
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&run.AutomationID,
		&executionID,
		&run.Status,
		&triggerData,
		&run.StartedAt,
		&finishedAt,
		&errorMessage,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ExecutionID = stringPtr(executionID)
	run.FinishedAt = int64Ptr(finishedAt)
	run.ErrorMessage = stringPtr(errorMessage)
	if triggerData.Valid && triggerData.String != "" {
		run.TriggerData = []byte(triggerData.String)
	}

	return &run, nil
}
