package jobrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// Transactional email templates, ported from the templates the platform sent
// through nodemailer. All copy is pt-BR.
var emailTemplates = template.Must(template.New("email").Parse(`
{{define "verification" -}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Bem-vindo à Siqueira Campos Imóveis!</h2>
  <p>Para começar a usar nossos serviços, por favor verifique seu email clicando no botão abaixo:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.SiteURL}}/verificar-email/{{.Token}}"
       style="background-color: #000; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">
      Verificar Email
    </a>
  </div>
  <p style="color: #666; font-size: 14px;">
    Se o botão não funcionar, copie e cole este link no seu navegador:<br>
    {{.SiteURL}}/verificar-email/{{.Token}}
  </p>
  <p style="color: #666; font-size: 14px;">
    Este link expira em 24 horas.
  </p>
</div>
{{- end}}

{{define "welcome" -}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Olá {{.Name}}!</h2>
  <p>Seja bem-vindo à Siqueira Campos Imóveis. Estamos muito felizes em ter você conosco!</p>
  <p>Com sua conta, você pode:</p>
  <ul style="color: #666;">
    <li>Favoritar imóveis de seu interesse</li>
    <li>Agendar visitas</li>
    <li>Receber notificações de novos imóveis</li>
    <li>Entrar em contato diretamente com nossos corretores</li>
  </ul>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.SiteURL}}/imoveis"
       style="background-color: #000; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">
      Começar a Explorar
    </a>
  </div>
</div>
{{- end}}

{{define "password_reset" -}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Redefinição de Senha</h2>
  <p>Você solicitou a redefinição de sua senha. Clique no botão abaixo para criar uma nova senha:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.SiteURL}}/redefinir-senha/{{.Token}}"
       style="background-color: #000; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">
      Redefinir Senha
    </a>
  </div>
  <p style="color: #666; font-size: 14px;">
    Se o botão não funcionar, copie e cole este link no seu navegador:<br>
    {{.SiteURL}}/redefinir-senha/{{.Token}}
  </p>
  <p style="color: #666; font-size: 14px;">
    Este link expira em 1 hora. Se você não solicitou esta redefinição, ignore este email.
  </p>
</div>
{{- end}}

{{define "visit_confirmation" -}}
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">Sua visita foi confirmada!</h2>
  <p>Detalhes da visita:</p>
  <div style="background-color: #f5f5f5; padding: 20px; border-radius: 4px;">
    <p><strong>Imóvel:</strong> {{.Visit.PropertyTitle}}</p>
    <p><strong>Data:</strong> {{.VisitDate}}</p>
    <p><strong>Horário:</strong> {{.VisitTime}}</p>
  </div>
  <p style="margin-top: 20px;">
    Lembre-se de chegar com 10 minutos de antecedência. Em caso de imprevistos,
    entre em contato conosco.
  </p>
</div>
{{- end}}
`))

var emailSubjects = map[model.JobType]string{
	model.JobTypeEmailVerification:      "Verifique seu email - Siqueira Campos Imóveis",
	model.JobTypeEmailWelcome:           "Bem-vindo à Siqueira Campos Imóveis",
	model.JobTypeEmailPasswordReset:     "Redefinição de Senha - Siqueira Campos Imóveis",
	model.JobTypeEmailVisitConfirmation: "Visita Confirmada - Siqueira Campos Imóveis",
}

var emailTemplateNames = map[model.JobType]string{
	model.JobTypeEmailVerification:      "verification",
	model.JobTypeEmailWelcome:           "welcome",
	model.JobTypeEmailPasswordReset:     "password_reset",
	model.JobTypeEmailVisitConfirmation: "visit_confirmation",
}

type emailTemplateData struct {
	SiteURL   string
	Token     string
	Name      string
	Visit     *model.VisitInfo
	VisitDate string
	VisitTime string
}

// handleEmailJob renders the template for the job type and delivers it through
// the mail transport.
func (r *Runner) handleEmailJob(ctx context.Context, job *model.Job) (json.RawMessage, error) {
	payload, err := model.DecodeEmailPayload(job.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode email payload: %w", err)
	}

	msg, err := r.buildEmail(job.Type, payload)
	if err != nil {
		return nil, err
	}

	sent, err := r.mail.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send %s to %s: %w", job.Type, payload.Email, err)
	}

	result, err := json.Marshal(sent)
	if err != nil {
		return nil, fmt.Errorf("encode email result: %w", err)
	}
	return result, nil
}

func (r *Runner) buildEmail(jobType model.JobType, payload *model.EmailPayload) (*model.OutboundEmail, error) {
	name, ok := emailTemplateNames[jobType]
	if !ok {
		return nil, fmt.Errorf("no email template for job type %s", jobType)
	}

	data := emailTemplateData{
		SiteURL: r.siteURL,
		Token:   payload.Token,
		Name:    payload.Name,
		Visit:   payload.Visit,
	}

	switch jobType {
	case model.JobTypeEmailVerification, model.JobTypeEmailPasswordReset:
		if payload.Token == "" {
			return nil, fmt.Errorf("%s requires a token", jobType)
		}
	case model.JobTypeEmailVisitConfirmation:
		if payload.Visit == nil {
			return nil, fmt.Errorf("%s requires visit details", jobType)
		}
		data.VisitDate = payload.Visit.ScheduledFor.Format("02/01/2006")
		data.VisitTime = payload.Visit.ScheduledFor.Format("15:04")
	}

	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, name, data); err != nil {
		return nil, fmt.Errorf("render email template %s: %w", name, err)
	}

	return &model.OutboundEmail{
		To:       payload.Email,
		Subject:  emailSubjects[jobType],
		HTMLBody: body.String(),
	}, nil
}
