package config

import (
	"strings"
	"time"
)

// MailConfig contains the external mail provider configuration.
type MailConfig struct {
	// BaseURL is the mail provider API endpoint.
	BaseURL string `env:"MAIL_BASE_URL" envDefault:"https://api.mail.local"`

	// APIKey authenticates against the provider. Required outside dev mode.
	APIKey string `env:"MAIL_API_KEY"`

	// FromAddress is the sender address for all transactional mail.
	FromAddress string `env:"MAIL_FROM_ADDRESS" envDefault:"contato@siqueiracamposimoveis.com.br"`

	// FromName is the display name for the sender.
	FromName string `env:"MAIL_FROM_NAME" envDefault:"Siqueira Campos Imóveis"`

	// Timeout bounds a single delivery request.
	Timeout time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	// SiteURL is the public web application URL used in email links.
	SiteURL string `env:"MAIL_SITE_URL" envDefault:"https://siqueiracamposimoveis.com.br"`
}

// Sanitize applies guardrails to mail configuration values.
func (c *MailConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.FromAddress = strings.TrimSpace(c.FromAddress)
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
