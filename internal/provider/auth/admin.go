package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/provider"
	"github.com/Payphone-Digital/portfolio-service/pkg/circuit"
)

const providerName = "auth"

// AdminClient calls the identity provider's admin API.
type AdminClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuit.Breaker
}

func NewAdminClient(baseURL, apiKey string, client *http.Client, breaker *circuit.Breaker) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    client,
		breaker: breaker,
	}
}

type passwordUpdate struct {
	Password string `json:"password"`
}

// Ready fails when a password update is bound to fail before reaching the
// provider: missing credentials or an open circuit.
func (c *AdminClient) Ready(context.Context) error {
	if c.baseURL == "" || c.apiKey == "" {
		return provider.ErrNotConfigured
	}
	return c.breaker.Ready()
}

// UpdatePassword replaces the password of identity.
func (c *AdminClient) UpdatePassword(ctx context.Context, identity, newPassword string) error {
	if c.baseURL == "" || c.apiKey == "" {
		return provider.ErrNotConfigured
	}

	body, err := json.Marshal(passwordUpdate{Password: newPassword})
	if err != nil {
		return fmt.Errorf("failed to encode password update: %w", err)
	}
	endpoint := c.baseURL + "/users/" + url.PathEscape(identity) + "/password"

	return c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build password update request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("password update request failed: %w", err)
		}
		defer resp.Body.Close()

		if !provider.Success(resp.StatusCode) {
			return provider.ReadStatusError(providerName, resp)
		}
		return nil
	})
}
