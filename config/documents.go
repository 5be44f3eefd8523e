package config

import "strings"

// DocumentsConfig contains document rendering configuration.
type DocumentsConfig struct {
	// OutputDir is the directory rendered spec sheets are written to.
	OutputDir string `env:"DOCUMENTS_OUTPUT_DIR" envDefault:"/var/lib/imoveis/documents"`
}

// Sanitize applies guardrails to document configuration values.
func (c *DocumentsConfig) Sanitize() {
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	if c.OutputDir == "" {
		c.OutputDir = "/var/lib/imoveis/documents"
	}
}
