package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

// Mailer sends transactional email through an HTTP email API. Sends are
// best-effort from the caller's point of view; failures are returned but
// never retried here.
type Mailer struct {
	apiKey   string
	baseURL  string
	from     string
	siteName string
	client   *http.Client
	logger   *zap.Logger
}

// Config holds mailer settings.
type Config struct {
	APIKey   string
	BaseURL  string
	From     string
	SiteName string
	Timeout  time.Duration
}

// New constructs a Mailer.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		from:     cfg.From,
		siteName: cfg.SiteName,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendWelcome delivers the post-checkout welcome email.
func (m *Mailer) SendWelcome(ctx context.Context, to, planName string) error {
	subject := fmt.Sprintf("Welcome to %s", m.siteName)
	html := fmt.Sprintf(
		"<p>Thanks for subscribing to the <strong>%s</strong> plan on %s.</p><p>Your subscription is now active.</p>",
		planName, m.siteName)
	return m.send(ctx, to, subject, html)
}

func (m *Mailer) send(ctx context.Context, to, subject, html string) error {
	if m.apiKey == "" {
		m.logger.Debug("mailer not configured, skipping send", zap.String("to", to))
		return nil
	}

	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "email delivery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("email API returned %d", resp.StatusCode))
	}
	return nil
}
