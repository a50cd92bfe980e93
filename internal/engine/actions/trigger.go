package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"controlhub/internal/platform/config"
)

const (
	HeaderSignature = "X-ControlHub-Signature"
	HeaderAction    = "X-ControlHub-Action"
	HeaderDelivery  = "X-ControlHub-Delivery"
)

// TriggerRequest is the JSON body posted to an automation's n8n webhook.
type TriggerRequest struct {
	AutomationID string `json:"automation_id"`
	Action       string `json:"action"`
	RequestedBy  string `json:"requested_by"`
	RequestedAt  int64  `json:"requested_at"`
}

// UpstreamError means the n8n webhook was unreachable or answered non-2xx.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trigger %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("trigger %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Trigger posts signed action requests to n8n webhook URLs.
type Trigger struct {
	client *resty.Client
	secret string
}

func NewTrigger(cfg config.TriggersConfig) *Trigger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "controlhub").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Trigger{client: client, secret: cfg.SigningSecret}
}

// Fire delivers req to url and returns the delivery id it used.
func (t *Trigger) Fire(ctx context.Context, url string, req TriggerRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	delivery := uuid.NewString()
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader(HeaderSignature, Sign(t.secret, payload)).
		SetHeader(HeaderAction, req.Action).
		SetHeader(HeaderDelivery, delivery).
		SetBody(payload).
		Post(url)
	if err != nil {
		return delivery, &UpstreamError{URL: url, Err: err}
	}
	if resp.IsError() {
		return delivery, &UpstreamError{URL: url, StatusCode: resp.StatusCode()}
	}
	return delivery, nil
}
