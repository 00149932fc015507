package handlers

import (
	"errors"

	"github.com/lib/pq"

	apierrors "github.com/recordkeeper/api/internal/errors"
)

// pqUniqueViolation is the Postgres error code for a unique-constraint
// violation (username, entitlement (userId, formatId), format name).
const pqUniqueViolation = "23505"

// mapUniqueViolation turns a unique-constraint violation into Conflict;
// anything else becomes a generic StorageError. The raw driver message
// never reaches the client either way.
func mapUniqueViolation(err error, message string) *apierrors.AppError {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return apierrors.Conflict(message)
	}
	return apierrors.StorageError(err)
}
