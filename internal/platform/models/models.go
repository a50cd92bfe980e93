package models

import "encoding/json"

type AutomationStatus string

const (
	StatusRunning AutomationStatus = "Running"
	StatusStopped AutomationStatus = "Stopped"
	StatusError   AutomationStatus = "Error"
	StatusStalled AutomationStatus = "Stalled"
)

func (s AutomationStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusError, StatusStalled:
		return true
	}
	return false
}

// Run statuses as reported by n8n executions.
const (
	RunRunning  = "running"
	RunSuccess  = "success"
	RunError    = "error"
	RunWaiting  = "waiting"
	RunCanceled = "canceled"
)

type Automation struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	ClientID       *string          `json:"client_id,omitempty"`
	Name           string           `json:"name"`
	Status         AutomationStatus `json:"status"`
	LastRunAt      *int64           `json:"last_run_at,omitempty"`
	LastRunStatus  *string          `json:"last_run_status,omitempty"`
	AvgDuration    float64          `json:"avg_duration"`
	SuccessRate    float64          `json:"success_rate"`
	RunWebhookURL  *string          `json:"run_webhook_url,omitempty"`
	StopWebhookURL *string          `json:"stop_webhook_url,omitempty"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}

// AutomationRun is written once per webhook delivery and never updated.
type AutomationRun struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automation_id"`
	ExecutionID  *string         `json:"execution_id,omitempty"`
	Status       string          `json:"status"`
	TriggerData  json.RawMessage `json:"trigger_data,omitempty"`
	StartedAt    int64           `json:"started_at"`
	FinishedAt   *int64          `json:"finished_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

// RunSummary carries the aggregates stored on an Automation after each run.
type RunSummary struct {
	TotalRuns   int
	AvgDuration float64
	SuccessRate float64
}

type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FullName     string `json:"full_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Role         string `json:"role"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type AuditLog struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Metadata     map[string]any `json:"metadata"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	CreatedAt    int64          `json:"created_at"`
}
