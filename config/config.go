// Package config loads and validates service configuration from environment
// variables.
package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and cache configuration
//   - services.go: Service mode and worker configuration
//   - mail.go: Mail provider configuration
//   - documents.go: Document rendering configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"SERVICES" envDefault:"email-worker,pdf-worker"`

	// Worker configuration per queue
	EmailWorker EmailWorkerConfig
	PDFWorker   PDFWorkerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Mail provider configuration
	Mail MailConfig

	// Document rendering configuration
	Documents DocumentsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Cache.Sanitize()
	c.EmailWorker.Sanitize()
	c.PDFWorker.Sanitize()
	c.Reaper.Sanitize()
	c.Mail.Sanitize()
	c.Documents.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}

// IsEmailWorkerEnabled reports whether the email worker service is enabled.
func (c *AppConfig) IsEmailWorkerEnabled() bool { return c.serviceEnabled(ServiceModeEmailWorker) }

// IsPDFWorkerEnabled reports whether the PDF worker service is enabled.
func (c *AppConfig) IsPDFWorkerEnabled() bool { return c.serviceEnabled(ServiceModePDFWorker) }

// IsReaperEnabled reports whether the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
