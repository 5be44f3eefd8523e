// Package mailapi implements the outbound mail transport against the hosted
// mail provider's HTTP API.
package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// Config captures the subset of the mail provider behaviour we need.
type Config struct {
	BaseURL     string
	APIKey      string
	FromAddress string
	FromName    string
	Timeout     time.Duration
	Client      *http.Client
}

// Client delivers transactional email through the provider's messages endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	fromAddress string
	fromName    string
	client      *http.Client
}

// NewClient builds a mail API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mail base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("mail api key is required")
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, errors.New("mail from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		fromAddress: strings.TrimSpace(cfg.FromAddress),
		fromName:    strings.TrimSpace(cfg.FromName),
		client:      hc,
	}, nil
}

type sendRequest struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name,omitempty"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTMLBody    string `json:"html_body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts the message to the provider and returns the delivery receipt.
func (c *Client) Send(ctx context.Context, email *model.OutboundEmail) (*model.EmailResult, error) {
	if email == nil {
		return nil, errors.New("email is required")
	}
	if strings.TrimSpace(email.To) == "" {
		return nil, errors.New("email recipient is required")
	}

	body, err := json.Marshal(sendRequest{
		FromAddress: c.fromAddress,
		FromName:    c.fromName,
		To:          email.To,
		Subject:     email.Subject,
		HTMLBody:    email.HTMLBody,
	})
	if err != nil {
		return nil, fmt.Errorf("encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp)
	}

	receipt, err := decodeSendResponse(resp)
	if err != nil {
		return nil, err
	}

	return &model.EmailResult{
		DeliveredTo: email.To,
		MessageID:   receipt.MessageID,
	}, nil
}

func decodeSendResponse(resp *http.Response) (*sendResponse, error) {
	defer resp.Body.Close()

	// Providers cap response sizes, but guard against a misbehaving proxy.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read mail response: %w", err)
	}

	var receipt sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &receipt); err != nil {
			return nil, fmt.Errorf("decode mail response: %w", err)
		}
	}
	return &receipt, nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return fmt.Errorf("read mail error response: %w", readErr)
	}

	return fmt.Errorf("mail provider %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}

// LogTransport is a dev-mode transport that logs instead of delivering.
// Used when no API key is configured outside production.
type LogTransport struct {
	Logger *slog.Logger
}

// Send logs the message and fabricates a receipt.
func (t *LogTransport) Send(ctx context.Context, email *model.OutboundEmail) (*model.EmailResult, error) {
	if email == nil {
		return nil, errors.New("email is required")
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "dev mode: email not delivered",
		"to", email.To,
		"subject", email.Subject,
		"body_bytes", len(email.HTMLBody),
	)
	return &model.EmailResult{DeliveredTo: email.To}, nil
}
