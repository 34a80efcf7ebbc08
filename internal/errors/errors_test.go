package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation(FieldError{Field: "username", Reason: ReasonFormat}), http.StatusBadRequest},
		{"not unique", NotUnique(FieldError{Field: "email", Message: "email already in use", Reason: ReasonUnique}), http.StatusConflict},
		{"already following", ErrAlreadyFollowing, http.StatusConflict},
		{"user not found", WithMessage(ErrUserNotFound, "target user not found"), http.StatusNotFound},
		{"self follow", ErrSelfFollowDenied, http.StatusForbidden},
		{"too many attempts", ErrTooManyAttempts, http.StatusTooManyRequests},
		{"upstream", Upstream("sms", errors.New("timeout")), http.StatusBadGateway},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"foreign", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped domain", fmt.Errorf("ctx: %w", ErrPortfolioNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	specialized := WithMessage(ErrUserNotFound, "actor profile not found")

	assert.True(t, errors.Is(specialized, ErrUserNotFound))
	assert.False(t, errors.Is(specialized, ErrPortfolioNotFound))
	assert.Equal(t, "actor profile not found", specialized.Error())
}

func TestNotUniqueSingleFieldMessage(t *testing.T) {
	err := NotUnique(FieldError{Field: "username", Message: "username already taken", Reason: ReasonUnique})

	assert.Equal(t, "username already taken", err.Message)
	assert.Len(t, GetFieldErrors(err), 1)
	assert.True(t, errors.Is(err, ErrNotUnique))
}

func TestGetErrorMessageHidesInternals(t *testing.T) {
	assert.Equal(t, ErrInternal.Message, GetErrorMessage(errors.New("pq: connection refused")))
	assert.Equal(t, ErrInternal.Code, GetErrorCode(errors.New("x")))

	wrapped := Internal(errors.New("disk full"))
	assert.Equal(t, ErrInternal.Message, GetErrorMessage(wrapped))
	assert.Contains(t, wrapped.Error(), "disk full")
}
