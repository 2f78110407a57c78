// Package repository persists profiles, links and the payment ledger in
// PostgreSQL.
package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrHandleTaken      = errors.New("username is already taken")
	ErrRecipientMissing = errors.New("payment recipient does not exist")
)

// InsertResult tells an idempotent insert's caller whether the row was new.
type InsertResult int

const (
	Created InsertResult = iota + 1
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")

	usernameIndex      = "profiles_username_lower_key"
	paymentIntentIndex = "payments_payment_intent_id_key"
)

func pqCode(err error) (pq.ErrorCode, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr.Constraint
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, name := pqCode(err)
	return code == uniqueViolation && (constraint == "" || name == "" || name == constraint)
}

func isForeignKeyViolation(err error) bool {
	code, _ := pqCode(err)
	return code == foreignKeyViolation
}
