package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository/memory"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmail = "alice@example.com"

type erroringThrottle struct{}

func (erroringThrottle) Throttle(context.Context, string, time.Duration) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func newTestLedger(t *testing.T, throttle SendThrottle, interval time.Duration) (*OTPLedger, *memory.OTPStore) {
	t.Helper()
	store := memory.NewOTPStore()
	ledger := NewOTPLedger(store, throttle, LedgerConfig{
		TTL:          5 * time.Minute,
		MaxAttempts:  3,
		SendInterval: interval,
	})
	return ledger, store
}

func TestOTPLedger_CreateAndVerify(t *testing.T) {
	ledger, store := newTestLedger(t, nil, 0)
	ctx := context.Background()

	code, expiresAt, err := ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Second)

	record, err := store.Get(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)
	assert.NotContains(t, record.CodeHash, code)
	assert.Equal(t, hashCode(code, record.Salt), record.CodeHash)
	assert.Len(t, record.Salt, codeSaltBytes*2)

	require.NoError(t, ledger.Verify(ctx, testEmail, model.PurposeRegistration, code))

	// Consumed on success.
	err = ledger.Verify(ctx, testEmail, model.PurposeRegistration, code)
	assert.ErrorIs(t, err, apperrors.ErrCodeNotFound)
}

func TestOTPLedger_PurposesAreSeparate(t *testing.T) {
	ledger, _ := newTestLedger(t, nil, 0)
	ctx := context.Background()

	code, _, err := ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)

	err = ledger.Verify(ctx, testEmail, model.PurposePasswordReset, code)
	assert.ErrorIs(t, err, apperrors.ErrCodeNotFound)
	assert.NoError(t, ledger.Verify(ctx, testEmail, model.PurposeRegistration, code))
}

func TestOTPLedger_ReissueInvalidatesPreviousCode(t *testing.T) {
	ledger, _ := newTestLedger(t, nil, 0)
	ctx := context.Background()

	first, _, err := ledger.Create(ctx, testEmail, model.PurposePasswordReset)
	require.NoError(t, err)
	second, _, err := ledger.Create(ctx, testEmail, model.PurposePasswordReset)
	require.NoError(t, err)

	if first != second {
		err = ledger.Verify(ctx, testEmail, model.PurposePasswordReset, first)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
	assert.NoError(t, ledger.Verify(ctx, testEmail, model.PurposePasswordReset, second))
}

func TestOTPLedger_AttemptLimit(t *testing.T) {
	ledger, _ := newTestLedger(t, nil, 0)
	ctx := context.Background()

	code, _, err := ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := ledger.Verify(ctx, testEmail, model.PurposeRegistration, wrongCode(code))
		require.ErrorIs(t, err, apperrors.ErrInvalidCode, "attempt %d", i+1)
	}

	// The correct code no longer helps once attempts are spent.
	err = ledger.Verify(ctx, testEmail, model.PurposeRegistration, code)
	assert.ErrorIs(t, err, apperrors.ErrTooManyAttempts)
}

func TestOTPLedger_Expiry(t *testing.T) {
	ledger, store := newTestLedger(t, nil, 0)
	ctx := context.Background()

	code, _, err := ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)

	ledger.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	err = ledger.Verify(ctx, testEmail, model.PurposeRegistration, code)
	assert.ErrorIs(t, err, apperrors.ErrCodeNotFound)

	_, err = store.Get(ctx, testEmail, model.PurposeRegistration)
	assert.Error(t, err, "expired record is dropped on read")
}

func TestOTPLedger_SweepExpired(t *testing.T) {
	ledger, _ := newTestLedger(t, nil, 0)
	ctx := context.Background()

	_, _, err := ledger.Create(ctx, "a@example.com", model.PurposeRegistration)
	require.NoError(t, err)
	_, _, err = ledger.Create(ctx, "b@example.com", model.PurposeRegistration)
	require.NoError(t, err)

	n, err := ledger.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ledger.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = ledger.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestOTPLedger_RejectsUnknownPurpose(t *testing.T) {
	ledger, _ := newTestLedger(t, nil, 0)

	_, _, err := ledger.Create(context.Background(), testEmail, model.OTPPurpose("login"))
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestOTPLedger_SendThrottle(t *testing.T) {
	windows := cache.New[struct{}](0)
	t.Cleanup(windows.Stop)
	ledger, _ := newTestLedger(t, NewLocalThrottle(windows), time.Minute)
	ctx := context.Background()

	_, _, err := ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.NoError(t, err)

	_, _, err = ledger.Create(ctx, testEmail, model.PurposeRegistration)
	require.ErrorIs(t, err, apperrors.ErrCodeSendThrottled)
	assert.True(t, strings.HasPrefix(apperrors.GetErrorMessage(err), "a code was sent recently, try again in "))

	// Other purposes and identifiers have their own window.
	_, _, err = ledger.Create(ctx, testEmail, model.PurposePasswordReset)
	assert.NoError(t, err)
	_, _, err = ledger.Create(ctx, "bob@example.com", model.PurposeRegistration)
	assert.NoError(t, err)
}

func TestOTPLedger_ThrottleFailureFailsOpen(t *testing.T) {
	ledger, _ := newTestLedger(t, erroringThrottle{}, time.Minute)

	_, _, err := ledger.Create(context.Background(), testEmail, model.PurposeRegistration)
	assert.NoError(t, err)
}

func TestHashCode(t *testing.T) {
	a := hashCode("123456", "salt-a")
	assert.Equal(t, a, hashCode("123456", "salt-a"))
	assert.NotEqual(t, a, hashCode("123456", "salt-b"))
	assert.NotEqual(t, a, hashCode("654321", "salt-a"))
	assert.Len(t, a, codeHashKeyLength*2)
}
