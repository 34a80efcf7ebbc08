package provider

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStatusError_TruncatesBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 2*maxErrorBody))),
	}

	err := ReadStatusError("twilio", resp)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "twilio", se.Provider)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Len(t, se.Body, maxErrorBody)
}

func TestTrips(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", errors.New("dial tcp: connection refused"), true},
		{"server error", &StatusError{Status: http.StatusServiceUnavailable}, true},
		{"rate limited", &StatusError{Status: http.StatusTooManyRequests}, true},
		{"bad request", &StatusError{Status: http.StatusBadRequest}, false},
		{"not found", &StatusError{Status: http.StatusNotFound}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trips(tt.err))
		})
	}
}

func TestSuccess(t *testing.T) {
	assert.True(t, Success(http.StatusOK))
	assert.True(t, Success(http.StatusCreated))
	assert.True(t, Success(http.StatusNoContent))
	assert.False(t, Success(http.StatusFound))
	assert.False(t, Success(http.StatusUnauthorized))
}
