package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlhub/internal/platform/auth"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/database"
	"controlhub/internal/platform/repositories"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hub.db")
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  url: \"file:"+dbPath+"\"\n"), 0o600))
	return path, dbPath
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestHubctl_Provisioning(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	out, err := run(t, configPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0001_init")

	out, err = run(t, configPath, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema is up to date", out)

	userID, err := run(t, configPath, "user", "create", "--email", "Ops@Example.com", "--password", "longenough", "--name", "Ops", "--admin")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(userID, "usr_"))

	clientID, err := run(t, configPath, "client", "create", "--name", "Acme")
	require.NoError(t, err)

	automationID, err := run(t, configPath, "automation", "create", "--user", userID, "--name", "Lead sync",
		"--client", clientID, "--run-url", "https://n8n.example.com/webhook/run")
	require.NoError(t, err)

	db, err := database.Open(config.DatabaseConfig{URL: "file:" + dbPath})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	user, err := repositories.NewUserRepository(db).GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "longenough"))

	a, err := repositories.NewAutomationRepository(db).GetForUser(ctx, automationID, userID)
	require.NoError(t, err)
	assert.Equal(t, "Stopped", string(a.Status))
	require.NotNil(t, a.ClientID)
	assert.Equal(t, clientID, *a.ClientID)
	assert.Nil(t, a.StopWebhookURL)
}

func TestHubctl_Validation(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := run(t, configPath, "user", "create", "--email", "not-an-email", "--password", "longenough")
	assert.ErrorContains(t, err, "email")

	_, err = run(t, configPath, "user", "create", "--email", "a@example.com", "--password", "short")
	assert.ErrorContains(t, err, "password")

	_, err = run(t, configPath, "client", "create")
	assert.Error(t, err)

	_, err = run(t, configPath, "automation", "create", "--user", "usr_1", "--name", "x", "--status", "Paused")
	assert.ErrorContains(t, err, "status")
}
