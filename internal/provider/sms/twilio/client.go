// Package twilio sends and checks SMS codes through Twilio Verify and sends
// plain messages through the Programmable Messaging API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/config"
	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
)

const (
	ProviderName = "twilio"

	defaultVerifyURL = "https://verify.twilio.com/v2"
	defaultAPIURL    = "https://api.twilio.com/2010-04-01"

	statusApproved = "approved"
)

type Client struct {
	accountSID string
	authToken  string
	serviceSID string
	fromNumber string
	verifyURL  string
	apiURL     string
	http       *http.Client
	breaker    *circuit.Breaker
}

type Option func(*Client)

// WithBaseURLs points the client at another Verify and Messaging host.
func WithBaseURLs(verifyURL, apiURL string) Option {
	return func(c *Client) {
		c.verifyURL = strings.TrimRight(verifyURL, "/")
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

func NewClient(cfg config.SMSConfig, client *http.Client, breaker *circuit.Breaker, opts ...Option) *Client {
	c := &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		serviceSID: cfg.VerifyServiceSID,
		fromNumber: cfg.FromNumber,
		verifyURL:  defaultVerifyURL,
		apiURL:     defaultAPIURL,
		http:       client,
		breaker:    breaker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verificationResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// SendCode asks Twilio Verify to text a code to phone.
func (c *Client) SendCode(ctx context.Context, phone string) error {
	if c.accountSID == "" || c.authToken == "" || c.serviceSID == "" {
		return provider.ErrNotConfigured
	}
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")

	endpoint := fmt.Sprintf("%s/Services/%s/Verifications", c.verifyURL, c.serviceSID)
	_, err := c.post(ctx, endpoint, form)
	return err
}

// CheckCode reports whether Twilio approves code for phone. A 404 means no
// pending verification exists, which is a denial rather than an outage.
func (c *Client) CheckCode(ctx context.Context, phone, code string) (bool, error) {
	if c.accountSID == "" || c.authToken == "" || c.serviceSID == "" {
		return false, provider.ErrNotConfigured
	}
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)

	endpoint := fmt.Sprintf("%s/Services/%s/VerificationCheck", c.verifyURL, c.serviceSID)
	result, err := c.post(ctx, endpoint, form)
	if err != nil {
		var se *provider.StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return result.Status == statusApproved, nil
}

// SendMessage texts body to phone from the configured number.
func (c *Client) SendMessage(ctx context.Context, phone, body string) error {
	if c.accountSID == "" || c.authToken == "" || c.fromNumber == "" {
		return provider.ErrNotConfigured
	}
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.apiURL, c.accountSID)
	_, err := c.post(ctx, endpoint, form)
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*verificationResponse, error) {
	var result verificationResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create twilio request: %w", err)
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send twilio request: %w", err)
		}
		defer resp.Body.Close()

		if !provider.Success(resp.StatusCode) {
			return provider.ReadStatusError(ProviderName, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode twilio response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
