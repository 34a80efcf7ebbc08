// Package brevo delivers one-time codes by email through the Brevo
// transactional API.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
)

const (
	ProviderName = "brevo"

	defaultAPIURL = "https://api.brevo.com/v3/smtp/email"
)

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <p>{{ .Intro }}</p>
  <p style="font-size: 24px; letter-spacing: 4px"><strong>{{ .Code }}</strong></p>
  <p>This code expires in {{ .Minutes }} {{ if eq .Minutes 1 }}minute{{ else }}minutes{{ end }}.</p>
  <p style="color: #888">If you did not request this, you can ignore this email.</p>
  <p style="color: #888">&copy; {{ now | date "2006" }} {{ .Sender }}</p>
</body>
</html>`

type message struct {
	Subject string
	Intro   string
}

var messages = map[model.OTPPurpose]message{
	model.PurposeRegistration: {
		Subject: "Verify your email address",
		Intro:   "Use this code to finish creating your account:",
	},
	model.PurposePasswordReset: {
		Subject: "Reset your password",
		Intro:   "Use this code to reset your password:",
	},
	model.PurposePhoneVerification: {
		Subject: "Your verification code",
		Intro:   "Use this code to verify your phone number:",
	},
}

type Client struct {
	apiKey    string
	fromEmail string
	fromName  string
	apiURL    string
	tmpl      *template.Template
	http      *http.Client
	breaker   *circuit.Breaker
}

type Option func(*Client)

func WithAPIURL(apiURL string) Option {
	return func(c *Client) { c.apiURL = apiURL }
}

func NewClient(cfg config.EmailConfig, client *http.Client, breaker *circuit.Breaker, opts ...Option) *Client {
	c := &Client{
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromAddress,
		fromName:  cfg.FromName,
		apiURL:    defaultAPIURL,
		tmpl:      template.Must(template.New("code").Funcs(sprig.FuncMap()).Parse(layout)),
		http:      client,
		breaker:   breaker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendEmailRequest struct {
	Sender      contact   `json:"sender"`
	To          []contact `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// SendCode emails code to the recipient with wording chosen by purpose.
func (c *Client) SendCode(ctx context.Context, to string, purpose model.OTPPurpose, code string, ttl time.Duration) error {
	if c.apiKey == "" || c.fromEmail == "" {
		return provider.ErrNotConfigured
	}
	msg, ok := messages[purpose]
	if !ok {
		return fmt.Errorf("brevo: no template for purpose %q", purpose)
	}

	html, err := c.render(msg, code, ttl)
	if err != nil {
		return err
	}
	body, err := json.Marshal(sendEmailRequest{
		Sender:      contact{Email: c.fromEmail, Name: c.fromName},
		To:          []contact{{Email: to}},
		Subject:     msg.Subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request body: %w", err)
	}

	return c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create brevo request: %w", err)
		}
		req.Header.Set("api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("brevo send email request failed: %w", err)
		}
		defer resp.Body.Close()

		if !provider.Success(resp.StatusCode) {
			return provider.ReadStatusError(ProviderName, resp)
		}
		return nil
	})
}

func (c *Client) render(msg message, code string, ttl time.Duration) (string, error) {
	sender := c.fromName
	if sender == "" {
		sender = c.fromEmail
	}
	var buf bytes.Buffer
	err := c.tmpl.Execute(&buf, map[string]interface{}{
		"Intro":   msg.Intro,
		"Code":    code,
		"Minutes": int(math.Ceil(ttl.Minutes())),
		"Sender":  sender,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
