package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"controlhub/internal/pkg/validator"
)

// Payload is the body n8n posts to /api/webhooks/n8n.
type Payload struct {
	AutomationID string          `json:"automation_id" validate:"required,max=64"`
	UserID       string          `json:"user_id" validate:"required,max=64"`
	Status       string          `json:"status" validate:"required,oneof=running success error waiting canceled"`
	ExecutionID  string          `json:"execution_id" validate:"max=255"`
	StartedAt    *Timestamp      `json:"started_at" validate:"-"`
	FinishedAt   *Timestamp      `json:"finished_at" validate:"-"`
	ErrorMessage string          `json:"error_message" validate:"max=4000"`
	TriggerData  json.RawMessage `json:"trigger_data"`
}

// Validate normalises the status and checks required fields and ordering.
func (p *Payload) Validate() error {
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))

	if err := validator.Struct(p); err != nil {
		return err
	}

	if p.StartedAt != nil && p.FinishedAt != nil && p.FinishedAt.Before(p.StartedAt.Time) {
		return &validator.ValidationError{Fields: map[string]string{
			"finished_at": "must not be before started_at",
		}}
	}
	return nil
}

// Timestamp accepts RFC3339 strings (fractional seconds allowed) or unix
// numbers in seconds or milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: expected RFC3339", s)
		}
		t.Time = parsed
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid timestamp %s", data)
	}
	if n > 1e12 {
		t.Time = time.UnixMilli(n)
	} else {
		t.Time = time.Unix(n, 0)
	}
	return nil
}
