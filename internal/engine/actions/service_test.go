package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlhub/internal/pkg/errors"
	"controlhub/internal/platform/audit"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/database/dbtest"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/repositories"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Log(e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type nopCache struct{ calls int }

func (c *nopCache) Invalidate(string) { c.calls++ }

type fixture struct {
	db      *database.DB
	svc     *Service
	audit   *recordingAudit
	metrics *metrics.Metrics
	hits    map[string]int
	mu      sync.Mutex
	status  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{hits: map[string]int{}, status: http.StatusOK}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		status := f.status
		f.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	f.db = dbtest.Open(t)
	dbtest.SeedUser(t, f.db, "usr_1", "a@example.com")
	dbtest.SeedAutomation(t, f.db, "aut_hooks", "usr_1", "With hooks", "Stopped")
	dbtest.SeedAutomation(t, f.db, "aut_bare", "usr_1", "No hooks", "Stopped")
	dbtest.Exec(t, f.db, `UPDATE automations SET run_webhook_url = ?, stop_webhook_url = ? WHERE id = 'aut_hooks'`,
		srv.URL+"/run", srv.URL+"/stop")

	f.audit = &recordingAudit{}
	f.metrics = metrics.New()
	trigger := NewTrigger(config.TriggersConfig{SigningSecret: "s", Timeout: time.Second})
	f.svc = NewService(repositories.NewAutomationRepository(f.db), trigger, f.audit, &nopCache{}, f.metrics)
	return f
}

func (f *fixture) statusOf(t *testing.T, id string) string {
	t.Helper()
	var status string
	require.NoError(t, f.db.QueryRow("SELECT status FROM automations WHERE id = ?", id).Scan(&status))
	return status
}

func TestService_RunAndStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{AutomationID: "aut_hooks", UserID: "usr_1", IPAddress: "10.0.0.1"}

	a, err := f.svc.Perform(ctx, Run, req)
	require.NoError(t, err)
	assert.Equal(t, "Running", string(a.Status))
	assert.Equal(t, "Running", f.statusOf(t, "aut_hooks"))
	assert.Equal(t, 1, f.hits["/run"])

	_, err = f.svc.Perform(ctx, Stop, req)
	require.NoError(t, err)
	assert.Equal(t, "Stopped", f.statusOf(t, "aut_hooks"))

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, audit.ActionRun, f.audit.entries[0].Action)
	assert.Equal(t, "10.0.0.1", f.audit.entries[0].IPAddress)
	assert.Equal(t, audit.ActionStop, f.audit.entries[1].Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Actions.WithLabelValues("run", "ok")))
}

func TestService_Restart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Perform(context.Background(), Restart, Request{AutomationID: "aut_hooks", UserID: "usr_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.hits["/stop"])
	assert.Equal(t, 1, f.hits["/run"])
	assert.Equal(t, "Running", f.statusOf(t, "aut_hooks"))
}

func TestService_MissingWebhook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Perform(context.Background(), Run, Request{AutomationID: "aut_bare", UserID: "usr_1"})
	assert.ErrorIs(t, err, ErrNoWebhook)
	assert.Empty(t, f.audit.entries)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Actions.WithLabelValues("run", "no_webhook")))
}

func TestService_UpstreamFailureLeavesStatus(t *testing.T) {
	f := newFixture(t)
	f.status = http.StatusInternalServerError

	_, err := f.svc.Perform(context.Background(), Run, Request{AutomationID: "aut_hooks", UserID: "usr_1"})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "Stopped", f.statusOf(t, "aut_hooks"))
	assert.Empty(t, f.audit.entries)
}

func TestService_NotOwned(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Perform(context.Background(), Run, Request{AutomationID: "aut_hooks", UserID: "usr_2"})
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 0, f.hits["/run"])
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Exec(t, f.db, `UPDATE automations SET status = 'Running' WHERE id = 'aut_hooks'`)
	dbtest.Exec(t, f.db, `INSERT INTO automation_runs (id, automation_id, status, started_at, created_at)
		VALUES ('run_1', 'aut_hooks', 'success', 1700000000, 1700000000)`)

	a, err := f.svc.Perform(ctx, Delete, Request{AutomationID: "aut_hooks", UserID: "usr_1"})
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Equal(t, 1, f.hits["/stop"], "running automation is stopped before delete")
	assert.Equal(t, 0, dbtest.Count(t, f.db, "automations", "id = ?", "aut_hooks"))
	assert.Equal(t, 0, dbtest.Count(t, f.db, "automation_runs", ""))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionDelete, f.audit.entries[0].Action)

	_, err = f.svc.Perform(ctx, Delete, Request{AutomationID: "aut_bare", UserID: "usr_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.hits["/stop"], "stopped automation deletes without a call")
}
