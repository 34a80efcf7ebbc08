package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every store when the addressed row does not exist.
var ErrNotFound = errors.New("repository: record not found")

const pgUniqueViolation = "23505"

// Unique constraint names. Postgres reports these on conflict and the
// in-memory stores reuse them so both backends are indistinguishable.
const (
	ConstraintUserIdentity        = "users_pkey"
	ConstraintUserEmail           = "idx_users_email"
	ConstraintUserUsername        = "idx_users_username"
	ConstraintUserPhone           = "idx_users_phone"
	ConstraintPortfolioOwnerName  = "idx_portfolios_owner_name"
	ConstraintPortfolioNameGlobal = "idx_portfolios_name_global"
	ConstraintPortfolioID         = "portfolios_pkey"
	ConstraintPostID              = "posts_pkey"
)

// Fields reported by UniqueViolationError.Field.
const (
	FieldIdentity      = "identity"
	FieldEmail         = "email"
	FieldUsername      = "username"
	FieldPhone         = "phone"
	FieldPortfolioName = "name"
	FieldID            = "id"
)

var constraintFields = map[string]string{
	ConstraintUserIdentity:        FieldIdentity,
	ConstraintUserEmail:           FieldEmail,
	ConstraintUserUsername:        FieldUsername,
	ConstraintUserPhone:           FieldPhone,
	ConstraintPortfolioOwnerName:  FieldPortfolioName,
	ConstraintPortfolioNameGlobal: FieldPortfolioName,
	ConstraintPortfolioID:         FieldID,
	ConstraintPostID:              FieldID,
}

// UniqueViolationError is the store-level conflict signal the services map to NotUnique.
type UniqueViolationError struct {
	Constraint string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("repository: unique constraint %q violated", e.Constraint)
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// Field returns the input field guarded by the violated constraint.
func (e *UniqueViolationError) Field() string {
	if f, ok := constraintFields[e.Constraint]; ok {
		return f
	}
	return e.Constraint
}

// GlobalScope reports whether the violated constraint spans all owners.
func (e *UniqueViolationError) GlobalScope() bool {
	return e.Constraint == ConstraintPortfolioNameGlobal
}

// AsUniqueViolation unwraps a UniqueViolationError from err.
func AsUniqueViolation(err error) (*UniqueViolationError, bool) {
	var uv *UniqueViolationError
	if errors.As(err, &uv) {
		return uv, true
	}
	return nil, false
}

// translateError maps driver errors onto the repository error vocabulary.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolationError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}
