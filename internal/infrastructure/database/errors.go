package database

import (
	"errors"

	"github.com/lib/pq"
)

const duplicateKeyCode = "23505"

func IsDuplicateKeyErr(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == pq.ErrorCode(duplicateKeyCode)
	}
	return false
}

// ViolatedConstraint returns the constraint (or index) name of a unique
// violation, or "" for any other error.
func ViolatedConstraint(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == pq.ErrorCode(duplicateKeyCode) {
		return pgErr.Constraint
	}
	return ""
}
