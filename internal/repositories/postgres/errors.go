package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

type errorKind int

const (
	kindUnknown errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

// storeError categorises persistence failures for the service layer.
type storeError struct {
	op         string
	kind       errorKind
	constraint string
	err        error
}

func (e *storeError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.op
}

func (e *storeError) Unwrap() error      { return e.err }
func (e *storeError) IsNotFound() bool   { return e.kind == kindNotFound }
func (e *storeError) IsConflict() bool   { return e.kind == kindConflict }
func (e *storeError) IsUnavailable() bool { return e.kind == kindUnavailable }

// Constraint names the violated database constraint for conflict errors.
func (e *storeError) Constraint() string { return e.constraint }

func notFoundError(op string) error {
	return &storeError{op: op, kind: kindNotFound, err: pgx.ErrNoRows}
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &storeError{op: op, kind: kindNotFound, err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return &storeError{op: op, kind: kindConflict, constraint: pgErr.ConstraintName, err: err}
		case pgErr.Code == pgCheckViolation:
			return &storeError{op: op, kind: kindConflict, constraint: pgErr.ConstraintName, err: err}
		case strings.HasPrefix(pgErr.Code, "08"):
			return &storeError{op: op, kind: kindUnavailable, err: err}
		}
	}

	if pgconn.Timeout(err) {
		return &storeError{op: op, kind: kindUnavailable, err: err}
	}

	return &storeError{op: op, kind: kindUnknown, err: err}
}

// ConstraintName extracts the violated constraint from a conflict error, if known.
func ConstraintName(err error) string {
	var se *storeError
	if errors.As(err, &se) {
		return se.constraint
	}
	return ""
}
