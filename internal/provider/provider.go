// Package provider holds what the outbound adapters share: status errors
// read from provider responses and the breaker filter that keeps client
// errors from tripping a circuit.
package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

// ErrNotConfigured is returned by adapters built without credentials.
var ErrNotConfigured = errors.New("provider: not configured")

// StatusError is a non-success HTTP response from a provider.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// ReadStatusError drains up to maxErrorBody bytes of resp into a StatusError.
func ReadStatusError(provider string, resp *http.Response) error {
	buf := new(strings.Builder)
	_, _ = io.Copy(buf, io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Provider: provider, Status: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
}

// Success reports a 2xx status.
func Success(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// Trips counts transport failures and 5xx/429 responses against a provider.
// Other 4xx responses mean the request was bad, not that the provider is down.
func Trips(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError || se.Status == http.StatusTooManyRequests
	}
	return true
}
