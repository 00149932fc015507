package models

import (
	"time"

	"github.com/lib/pq"
)

// AccessKind is one grantable permission on a (user, format) pair.
type AccessKind string

const (
	AccessRead          AccessKind = "read"
	AccessWrite         AccessKind = "write"
	AccessDelete        AccessKind = "delete"
	AccessLimitedDelete AccessKind = "limitedDelete"
)

// Valid reports whether k is a known access kind.
func (k AccessKind) Valid() bool {
	switch k {
	case AccessRead, AccessWrite, AccessDelete, AccessLimitedDelete:
		return true
	}
	return false
}

// Entitlement grants a user a set of access kinds on a format. Superusers
// bypass entitlement checks entirely and never need a row here.
type Entitlement struct {
	UserID    string         `json:"userId" db:"user_id"`
	FormatID  int64          `json:"formatId" db:"format_id"`
	Access    pq.StringArray `json:"access" db:"access"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Has reports whether the entitlement grants the given access kind.
func (e *Entitlement) Has(kind AccessKind) bool {
	for _, a := range e.Access {
		if AccessKind(a) == kind {
			return true
		}
	}
	return false
}

// SetEntitlementRequest is the body of POST /entitlement.
type SetEntitlementRequest struct {
	UserID   string   `json:"userId" validate:"required"`
	FormatID int64    `json:"formatId" validate:"required"`
	Access   []string `json:"access" validate:"required,dive,oneof=read write delete limitedDelete"`
}
