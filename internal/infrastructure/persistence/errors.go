package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the retry and conflict paths care about
const (
	sqlstateDeadlockDetected    = "40P01"
	sqlstateSerializationFailed = "40001"
	sqlstateUniqueViolation     = "23505"
)

// IsDeadlock reports whether the database aborted the transaction as a
// deadlock victim or a serialization failure. Both are safe to retry from
// the top of the transaction.
func IsDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateDeadlockDetected || pgErr.Code == sqlstateSerializationFailed
	}
	return false
}

// IsUniqueViolation reports whether the error is a unique index conflict
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUniqueViolation
	}
	return false
}
