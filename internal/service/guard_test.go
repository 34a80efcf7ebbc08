package service

import (
	"context"
	"testing"

	apperrors "github.com/Payphone-Digital/portfolio-service/internal/errors"
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"github.com/Payphone-Digital/portfolio-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_FormatErrorsBeforeLookups(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.stores.Users.Create(ctx, &model.User{Identity: "uid-1", Email: model.Optional("taken@example.com")}))

	err := f.guard.CheckIdentity(ctx, IdentityFields{Email: "taken@example.com", Username: "a!"}, "uid-2")
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)

	fields := apperrors.GetFieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, repository.FieldUsername, fields[0].Field)
	assert.Equal(t, apperrors.ReasonFormat, fields[0].Reason)
}

func TestGuard_CheckIdentity(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.stores.Users.Create(ctx, &model.User{
		Identity: "uid-alice",
		Email:    model.Optional("alice@example.com"),
		Username: model.Optional("alice"),
		Phone:    model.Optional("+14155550100"),
	}))

	tests := []struct {
		name      string
		fields    IdentityFields
		exclude   string
		wantField string
		wantMsg   string
	}{
		{name: "own values when editing", fields: IdentityFields{Email: "alice@example.com", Username: "alice"}, exclude: "uid-alice"},
		{name: "absent values never collide", fields: IdentityFields{}, exclude: "uid-bob"},
		{name: "fresh values", fields: IdentityFields{Email: "bob@example.com", Username: "bob", Phone: "+14155550111"}, exclude: "uid-bob"},
		{name: "email taken", fields: IdentityFields{Email: "alice@example.com"}, exclude: "uid-bob", wantField: "email", wantMsg: "email already in use"},
		{name: "username taken", fields: IdentityFields{Username: "alice"}, exclude: "uid-bob", wantField: "username", wantMsg: "username already taken"},
		{name: "phone taken", fields: IdentityFields{Phone: "+14155550100"}, exclude: "uid-bob", wantField: "phone", wantMsg: "phone number already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.guard.CheckIdentity(ctx, tt.fields, tt.exclude)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperrors.ErrNotUnique)
			assert.Equal(t, tt.wantMsg, apperrors.GetErrorMessage(err))
			fields := apperrors.GetFieldErrors(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.wantField, fields[0].Field)
			assert.Equal(t, apperrors.ReasonUnique, fields[0].Reason)
		})
	}
}

func TestIdentityFields_Normalize(t *testing.T) {
	got := IdentityFields{Email: "  Alice@Example.COM ", Username: " alice_1 ", Phone: "(415) 555-0100"}.Normalize()
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "alice_1", got.Username)
	assert.Equal(t, "+4155550100", got.Phone)

	// A phone with no digits is kept so the format check rejects it.
	assert.Equal(t, "abc", IdentityFields{Phone: "abc"}.Normalize().Phone)
}

func TestGuard_PortfolioNameScopes(t *testing.T) {
	ctx := context.Background()

	t.Run("owner scope", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, f.stores.Portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "alice", Name: "Music", Category: "art"}))

		err := f.guard.CheckPortfolioName(ctx, "Music", "alice", "")
		require.ErrorIs(t, err, apperrors.ErrNotUnique)
		assert.Equal(t, msgPortfolioNameOwner, apperrors.GetErrorMessage(err))

		assert.NoError(t, f.guard.CheckPortfolioName(ctx, "Music", "bob", ""))
		assert.NoError(t, f.guard.CheckPortfolioName(ctx, "Music", "alice", "p1"), "renaming to its own name")
	})

	t.Run("global scope", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.stores.Portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "alice", Name: "Music", Category: "art"}))

		err := f.guard.CheckPortfolioName(ctx, "Music", "bob", "")
		require.ErrorIs(t, err, apperrors.ErrNotUnique)
		assert.Equal(t, msgPortfolioNameGlobal, apperrors.GetErrorMessage(err))

		err = f.guard.CheckPortfolioName(ctx, "Music", "alice", "")
		assert.Equal(t, msgPortfolioNameOwner, apperrors.GetErrorMessage(err), "owner scope is reported first")
	})

	t.Run("format", func(t *testing.T) {
		f := newFixture(t, false)
		for _, name := range []string{"ab", "bad/name", "this name is far too long to be accepted as a portfolio name"} {
			err := f.guard.CheckPortfolioName(ctx, name, "alice", "")
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed, name)
		}
	})
}

func TestGuard_Availability(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.createUser(t, "uid-alice", "alice")

	resp, err := f.guard.Availability(ctx, repository.FieldUsername, "alice", "")
	require.NoError(t, err)
	assert.False(t, resp.Available)

	resp, err = f.guard.Availability(ctx, repository.FieldUsername, "alice", "uid-alice")
	require.NoError(t, err)
	assert.True(t, resp.Available)

	resp, err = f.guard.Availability(ctx, repository.FieldEmail, " New@Example.com", "")
	require.NoError(t, err)
	assert.True(t, resp.Available)
	assert.Equal(t, "new@example.com", resp.Value)

	_, err = f.guard.Availability(ctx, repository.FieldPhone, "12", "")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.guard.Availability(ctx, repository.FieldUsername, "", "")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestGuard_PortfolioNameAvailability(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.stores.Portfolios.Create(ctx, &model.Portfolio{ID: "p1", OwnerID: "alice", Name: "Music", Category: "art"}))

	resp, err := f.guard.PortfolioNameAvailability(ctx, "Music", "")
	require.NoError(t, err)
	assert.False(t, resp.Available)

	resp, err = f.guard.PortfolioNameAvailability(ctx, "Music", "bob")
	require.NoError(t, err)
	assert.True(t, resp.Available)

	resp, err = f.guard.PortfolioNameAvailability(ctx, " Music ", "alice")
	require.NoError(t, err)
	assert.False(t, resp.Available)
}

func TestUniqueConflict(t *testing.T) {
	assert.Nil(t, uniqueConflict(errStoreDown))

	err := uniqueConflict(&repository.UniqueViolationError{Constraint: repository.ConstraintUserEmail})
	require.ErrorIs(t, err, apperrors.ErrNotUnique)
	assert.Equal(t, "email already in use", apperrors.GetErrorMessage(err))

	err = uniqueConflict(&repository.UniqueViolationError{Constraint: repository.ConstraintPortfolioNameGlobal})
	assert.Equal(t, msgPortfolioNameGlobal, apperrors.GetErrorMessage(err))

	err = uniqueConflict(&repository.UniqueViolationError{Constraint: repository.ConstraintPortfolioOwnerName})
	assert.Equal(t, msgPortfolioNameOwner, apperrors.GetErrorMessage(err))
}
