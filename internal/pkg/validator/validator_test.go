package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	AutomationID string `json:"automation_id" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=running success error"`
	Avatar       string `json:"avatar_url" validate:"omitempty,url"`
}

func TestStruct(t *testing.T) {
	err := Struct(sample{Status: "done", Avatar: "not a url"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields["automation_id"])
	assert.Equal(t, "must be one of: running success error", verr.Fields["status"])
	assert.Equal(t, "must be a valid URL", verr.Fields["avatar_url"])
	assert.Contains(t, err.Error(), "automation_id is required")
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{AutomationID: "aut_1", Status: "success"}))
}
