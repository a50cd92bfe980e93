package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlhub/internal/platform/database/dbtest"
	"controlhub/internal/platform/repositories"
)

func TestService_Overview(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedUser(t, db, "usr_2", "b@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "A", "Running")
	dbtest.SeedAutomation(t, db, "aut_2", "usr_1", "B", "Error")
	dbtest.SeedAutomation(t, db, "aut_3", "usr_1", "C", "Running")
	dbtest.SeedAutomation(t, db, "aut_4", "usr_2", "D", "Stalled")
	dbtest.Exec(t, db, `UPDATE automations SET success_rate = 80 WHERE id = 'aut_1'`)
	dbtest.Exec(t, db, `UPDATE automations SET success_rate = 40 WHERE id = 'aut_2'`)

	now := time.Unix(1700100000, 0)
	insertRun := func(id, automation, status string, startedAt int64) {
		dbtest.Exec(t, db, `INSERT INTO automation_runs (id, automation_id, status, started_at, created_at)
			VALUES (?, ?, ?, ?, ?)`, id, automation, status, startedAt, startedAt)
	}
	insertRun("r1", "aut_1", "success", now.Add(-time.Hour).Unix())
	insertRun("r2", "aut_2", "error", now.Add(-2*time.Hour).Unix())
	insertRun("r3", "aut_2", "error", now.Add(-48*time.Hour).Unix())
	insertRun("r4", "aut_4", "error", now.Add(-time.Hour).Unix())

	svc := NewService(repositories.NewAutomationRepository(db), repositories.NewRunRepository(db))
	svc.now = func() time.Time { return now }

	out, err := svc.Overview(context.Background(), "usr_1")
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalAutomations)
	assert.Equal(t, 2, out.Running)
	assert.Equal(t, 1, out.Error)
	assert.Equal(t, 0, out.Stalled)
	assert.Equal(t, 3, out.TotalRuns)
	assert.Equal(t, 2, out.RunsLast24h)
	assert.Equal(t, 1, out.FailedLast24h)
	assert.InDelta(t, 40.0, out.AvgSuccessRate, 0.001)
}

func TestService_OverviewEmpty(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(repositories.NewAutomationRepository(db), repositories.NewRunRepository(db))

	out, err := svc.Overview(context.Background(), "usr_none")
	require.NoError(t, err)
	assert.Equal(t, &Overview{}, out)
}
