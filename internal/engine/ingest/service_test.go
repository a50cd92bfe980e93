package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlhub/internal/pkg/errors"
	"controlhub/internal/pkg/validator"
	"controlhub/internal/platform/database/dbtest"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

type recordingCache struct {
	users []string
}

func (c *recordingCache) Invalidate(userID string) {
	c.users = append(c.users, userID)
}

type failingApply struct {
	*repositories.AutomationRepository
}

func (f failingApply) ApplyRun(context.Context, string, repositories.RunUpdate) error {
	return fmt.Errorf("database is locked")
}

func decode(t *testing.T, body string) *Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

func TestService_Ingest(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "Lead sync", "Running")

	automations := repositories.NewAutomationRepository(db)
	cache := &recordingCache{}
	m := metrics.New()
	svc := NewService(automations, repositories.NewRunRepository(db), cache, m)
	svc.now = func() time.Time { return time.Unix(1700001000, 0) }
	ctx := context.Background()

	run, err := svc.Ingest(ctx, decode(t, `{
		"automation_id": "aut_1",
		"user_id": "usr_1",
		"execution_id": "exec-9",
		"status": "success",
		"started_at": "2023-11-14T22:13:20Z",
		"finished_at": "2023-11-14T22:13:50.250Z",
		"trigger_data": {"source": "crm"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, int64(1700000030), *run.FinishedAt)
	assert.JSONEq(t, `{"source":"crm"}`, string(run.TriggerData))

	assert.Equal(t, 1, dbtest.Count(t, db, "automation_runs", "automation_id = ?", "aut_1"))

	a, err := automations.GetByID(ctx, "aut_1")
	require.NoError(t, err)
	require.NotNil(t, a.LastRunStatus)
	assert.Equal(t, "success", *a.LastRunStatus)
	assert.Equal(t, 30.0, a.AvgDuration)
	assert.Equal(t, 100.0, a.SuccessRate)
	assert.Equal(t, []string{"usr_1"}, cache.users)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("accepted")))
}

func TestService_IngestDuplicateExecution(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "Lead sync", "Running")
	svc := NewService(repositories.NewAutomationRepository(db), repositories.NewRunRepository(db), &recordingCache{}, metrics.New())

	body := `{"automation_id":"aut_1","user_id":"usr_1","execution_id":"exec-1","status":"running"}`
	first, err := svc.Ingest(context.Background(), decode(t, body))
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), decode(t, body))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, dbtest.Count(t, db, "automation_runs", "execution_id = ?", "exec-1"))
}

func TestService_IngestUnknownAutomation(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedUser(t, db, "usr_2", "b@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "Lead sync", "Running")
	svc := NewService(repositories.NewAutomationRepository(db), repositories.NewRunRepository(db), &recordingCache{}, metrics.New())

	_, err := svc.Ingest(context.Background(), decode(t, `{"automation_id":"aut_missing","user_id":"usr_1","status":"success"}`))
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.Ingest(context.Background(), decode(t, `{"automation_id":"aut_1","user_id":"usr_2","status":"success"}`))
	assert.True(t, errors.IsNotFound(err), "automation owned by another user")

	assert.Equal(t, 0, dbtest.Count(t, db, "automation_runs", ""))
}

func TestService_IngestUpdateFailureStillSucceeds(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "Lead sync", "Running")

	m := metrics.New()
	cache := &recordingCache{}
	store := failingApply{repositories.NewAutomationRepository(db)}
	svc := NewService(store, repositories.NewRunRepository(db), cache, m)

	run, err := svc.Ingest(context.Background(), decode(t, `{"automation_id":"aut_1","user_id":"usr_1","status":"error","error_message":"boom"}`))
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, 1, dbtest.Count(t, db, "automation_runs", ""))
	assert.Equal(t, 1, dbtest.Count(t, db, "automations", "last_run_status IS NULL"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdateFailures))
	assert.Equal(t, []string{"usr_1"}, cache.users)
}

func TestService_IngestFinishedOnly(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.SeedUser(t, db, "usr_1", "a@example.com")
	dbtest.SeedAutomation(t, db, "aut_1", "usr_1", "Lead sync", "Running")

	automations := repositories.NewAutomationRepository(db)
	svc := NewService(automations, repositories.NewRunRepository(db), &recordingCache{}, metrics.New())
	svc.now = func() time.Time { return time.Unix(1700001000, 0) }
	ctx := context.Background()

	// finished_at precedes receipt time and started_at is absent.
	run, err := svc.Ingest(ctx, decode(t, `{"automation_id":"aut_1","user_id":"usr_1","status":"success",
		"finished_at":"2023-11-14T22:13:50Z"}`))
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, int64(1700000030), *run.FinishedAt)
	assert.Equal(t, int64(1700000030), run.StartedAt)

	// finished_at after receipt time keeps the receipt time as the start.
	run, err = svc.Ingest(ctx, decode(t, `{"automation_id":"aut_1","user_id":"usr_1","status":"success",
		"finished_at":1700001020}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700001000), run.StartedAt)
	assert.Equal(t, int64(1700001020), *run.FinishedAt)

	a, err := automations.GetByID(ctx, "aut_1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.AvgDuration, 0.0)
	assert.Equal(t, 10.0, a.AvgDuration)
	assert.Equal(t, 0, dbtest.Count(t, db, "automation_runs", "finished_at < started_at"))
}

func TestService_IngestValidation(t *testing.T) {
	m := metrics.New()
	svc := NewService(nil, nil, &recordingCache{}, m)

	_, err := svc.Ingest(context.Background(), decode(t, `{"user_id":"usr_1","status":"success"}`))
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "automation_id")

	_, err = svc.Ingest(context.Background(), decode(t, `{"automation_id":"a","user_id":"u","status":"exploded"}`))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")

	_, err = svc.Ingest(context.Background(), decode(t, `{"automation_id":"a","user_id":"u","status":"success",
		"started_at":"2024-01-01T10:00:00Z","finished_at":"2024-01-01T09:00:00Z"}`))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "finished_at")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.WebhookDeliveries.WithLabelValues("invalid")))
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current models.AutomationStatus
		run     string
		want    models.AutomationStatus
	}{
		{models.StatusRunning, models.RunError, models.StatusError},
		{models.StatusStopped, models.RunError, models.StatusError},
		{models.StatusError, models.RunSuccess, models.StatusRunning},
		{models.StatusStalled, models.RunRunning, models.StatusRunning},
		{models.StatusRunning, models.RunSuccess, ""},
		{models.StatusStopped, models.RunSuccess, ""},
		{models.StatusError, models.RunError, ""},
		{models.StatusError, models.RunWaiting, ""},
		{models.StatusStalled, models.RunCanceled, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"/"+tt.run, func(t *testing.T) {
			got := NextStatus(tt.current, tt.run)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var p struct {
		A *Timestamp `json:"a"`
		B *Timestamp `json:"b"`
		C *Timestamp `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-01-01T00:00:00+02:00","b":1700000000,"c":1700000000500}`), &p))
	assert.Equal(t, int64(1704060000), p.A.Unix())
	assert.Equal(t, int64(1700000000), p.B.Unix())
	assert.Equal(t, int64(1700000000), p.C.Unix())

	var bad struct {
		A Timestamp `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a":"yesterday"}`), &bad))
}
