package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Queue(t *testing.T) {
	emailTypes := []JobType{
		JobTypeEmailVerification,
		JobTypeEmailWelcome,
		JobTypeEmailPasswordReset,
		JobTypeEmailVisitConfirmation,
	}
	for _, jobType := range emailTypes {
		assert.Equal(t, QueueEmail, jobType.Queue(), "type %s", jobType)
	}
	assert.Equal(t, QueuePDF, JobTypePDFSpecSheet.Queue())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte(" Email_Welcome ")))
	assert.Equal(t, JobTypeEmailWelcome, jt)

	require.Error(t, jt.UnmarshalText([]byte("email_newsletter")))
}

func TestQueue_UnmarshalText(t *testing.T) {
	var q Queue
	require.NoError(t, q.UnmarshalText([]byte("PDF")))
	assert.Equal(t, QueuePDF, q)

	require.Error(t, q.UnmarshalText([]byte("fax")))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := CreateJobRequest{
		Type:    JobTypeEmailWelcome,
		Payload: json.RawMessage(`{"email":"a@b.com"}`),
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		req  CreateJobRequest
	}{
		{"invalid type", CreateJobRequest{Type: "unknown", Payload: valid.Payload}},
		{"missing payload", CreateJobRequest{Type: JobTypeEmailWelcome}},
		{"malformed payload", CreateJobRequest{Type: JobTypeEmailWelcome, Payload: json.RawMessage(`{`)}},
		{"negative max retries", CreateJobRequest{Type: JobTypeEmailWelcome, Payload: valid.Payload, MaxRetries: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.req.Validate())
		})
	}
}

func TestDecodeEmailPayload(t *testing.T) {
	t.Run("decodes a full payload", func(t *testing.T) {
		raw := json.RawMessage(`{
			"email": "cliente@example.com",
			"visit": {
				"property_id": "prop-1",
				"property_title": "Casa no Setor Sul",
				"scheduled_for": "2025-07-15T14:30:00Z"
			}
		}`)
		p, err := DecodeEmailPayload(raw)
		require.NoError(t, err)
		assert.Equal(t, "cliente@example.com", p.Email)
		require.NotNil(t, p.Visit)
		assert.Equal(t, "Casa no Setor Sul", p.Visit.PropertyTitle)
		assert.Equal(t, time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC), p.Visit.ScheduledFor)
	})

	t.Run("requires a recipient", func(t *testing.T) {
		_, err := DecodeEmailPayload(json.RawMessage(`{"email":"  "}`))
		require.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := DecodeEmailPayload(json.RawMessage(`{"email":`))
		require.Error(t, err)
	})
}

func TestDecodeSpecSheetPayload(t *testing.T) {
	p, err := DecodeSpecSheetPayload(json.RawMessage(`{"property_id":"prop-7"}`))
	require.NoError(t, err)
	assert.Equal(t, "prop-7", p.PropertyID)

	_, err = DecodeSpecSheetPayload(json.RawMessage(`{"property_id":""}`))
	require.Error(t, err)

	_, err = DecodeSpecSheetPayload(json.RawMessage(`{}`))
	require.Error(t, err)
}
