package job

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

func TestCacheKey(t *testing.T) {
	t.Run("spec sheet keys on property id", func(t *testing.T) {
		payload := json.RawMessage(`{"property_id":"42"}`)
		key, err := CacheKey(model.JobTypePDFSpecSheet, payload)
		require.NoError(t, err)
		assert.Equal(t, "spec_sheet_42", key)
	})

	t.Run("same property yields same key regardless of job", func(t *testing.T) {
		a, err := CacheKey(model.JobTypePDFSpecSheet, json.RawMessage(`{"property_id":"7"}`))
		require.NoError(t, err)
		b, err := CacheKey(model.JobTypePDFSpecSheet, json.RawMessage(`{"property_id":"7"}`))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("email types are not cacheable", func(t *testing.T) {
		for _, jobType := range []model.JobType{
			model.JobTypeEmailVerification,
			model.JobTypeEmailWelcome,
			model.JobTypeEmailPasswordReset,
			model.JobTypeEmailVisitConfirmation,
		} {
			key, err := CacheKey(jobType, json.RawMessage(`{"email":"a@b.com"}`))
			require.NoError(t, err)
			assert.Empty(t, key, "type %s", jobType)
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := CacheKey(model.JobTypePDFSpecSheet, json.RawMessage(`{}`))
		assert.Error(t, err)
	})
}
