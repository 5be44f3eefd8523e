package jobrunner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

func TestRunner_BuildEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runner := newEmailRunner(t, ctrl).runner

	t.Run("verification links the token", func(t *testing.T) {
		msg, err := runner.buildEmail(model.JobTypeEmailVerification, &model.EmailPayload{
			Email: "cliente@example.com",
			Token: "tok-abc",
		})
		require.NoError(t, err)
		assert.Equal(t, "Verifique seu email - Siqueira Campos Imóveis", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "https://siqueiracamposimoveis.com.br/verificar-email/tok-abc")
		assert.Contains(t, msg.HTMLBody, "expira em 24 horas")
	})

	t.Run("welcome greets by name", func(t *testing.T) {
		msg, err := runner.buildEmail(model.JobTypeEmailWelcome, &model.EmailPayload{
			Email: "cliente@example.com",
			Name:  "Maria",
		})
		require.NoError(t, err)
		assert.Equal(t, "Bem-vindo à Siqueira Campos Imóveis", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "Olá Maria!")
		assert.Contains(t, msg.HTMLBody, "https://siqueiracamposimoveis.com.br/imoveis")
	})

	t.Run("password reset links the token", func(t *testing.T) {
		msg, err := runner.buildEmail(model.JobTypeEmailPasswordReset, &model.EmailPayload{
			Email: "cliente@example.com",
			Token: "tok-reset",
		})
		require.NoError(t, err)
		assert.Contains(t, msg.HTMLBody, "/redefinir-senha/tok-reset")
		assert.Contains(t, msg.HTMLBody, "expira em 1 hora")
	})

	t.Run("visit confirmation formats date and time", func(t *testing.T) {
		msg, err := runner.buildEmail(model.JobTypeEmailVisitConfirmation, &model.EmailPayload{
			Email: "cliente@example.com",
			Visit: &model.VisitInfo{
				PropertyID:    "prop-1",
				PropertyTitle: "Casa no Setor Sul",
				ScheduledFor:  time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Visita Confirmada - Siqueira Campos Imóveis", msg.Subject)
		assert.Contains(t, msg.HTMLBody, "Casa no Setor Sul")
		assert.Contains(t, msg.HTMLBody, "15/07/2025")
		assert.Contains(t, msg.HTMLBody, "14:30")
	})

	t.Run("token emails require a token", func(t *testing.T) {
		for _, jobType := range []model.JobType{model.JobTypeEmailVerification, model.JobTypeEmailPasswordReset} {
			_, err := runner.buildEmail(jobType, &model.EmailPayload{Email: "cliente@example.com"})
			require.Error(t, err, "type %s", jobType)
		}
	})

	t.Run("visit confirmation requires visit details", func(t *testing.T) {
		_, err := runner.buildEmail(model.JobTypeEmailVisitConfirmation, &model.EmailPayload{Email: "cliente@example.com"})
		require.Error(t, err)
	})

	t.Run("pdf job type has no email template", func(t *testing.T) {
		_, err := runner.buildEmail(model.JobTypePDFSpecSheet, &model.EmailPayload{Email: "cliente@example.com"})
		require.Error(t, err)
	})
}
