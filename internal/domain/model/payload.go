package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EmailPayload is the payload carried by every email job type. Token is set
// for verification and password reset emails, Name for welcome emails, and
// Visit for visit confirmations.
type EmailPayload struct {
	Email string     `json:"email"`
	Token string     `json:"token,omitempty"`
	Name  string     `json:"name,omitempty"`
	Visit *VisitInfo `json:"visit,omitempty"`
}

// VisitInfo describes a scheduled property visit included in confirmation emails.
type VisitInfo struct {
	PropertyID    string    `json:"property_id"`
	PropertyTitle string    `json:"property_title"`
	ScheduledFor  time.Time `json:"scheduled_for"`
}

// Validate checks the fields required by every email job.
func (p *EmailPayload) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return errors.New("email recipient is required")
	}
	return nil
}

// SpecSheetPayload is the payload for pdf_spec_sheet jobs. It references the
// property by id; the handler loads the row at execution time so the PDF
// always reflects current data.
type SpecSheetPayload struct {
	PropertyID string `json:"property_id"`
}

// Validate checks the fields required by a spec sheet job.
func (p *SpecSheetPayload) Validate() error {
	if strings.TrimSpace(p.PropertyID) == "" {
		return errors.New("property id is required")
	}
	return nil
}

// SpecSheetResult is the result stored for a completed pdf_spec_sheet job.
type SpecSheetResult struct {
	FilePath string `json:"file_path"`
}

// EmailResult is the result stored for a completed email job.
type EmailResult struct {
	DeliveredTo string `json:"delivered_to"`
	MessageID   string `json:"message_id,omitempty"`
}

// DecodeEmailPayload unmarshals and validates an email job payload.
func DecodeEmailPayload(raw json.RawMessage) (*EmailPayload, error) {
	var p EmailPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeSpecSheetPayload unmarshals and validates a spec sheet job payload.
func DecodeSpecSheetPayload(raw json.RawMessage) (*SpecSheetPayload, error) {
	var p SpecSheetPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
