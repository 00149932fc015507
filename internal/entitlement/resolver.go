// Package entitlement resolves whether a caller may access a format with a
// given kind of access, and what additional restrictions apply.
//
// A superuser bypasses every check. Everyone else needs an entitlement row
// for the (userId, formatId) pair granting the requested access kind;
// limitedDelete additionally bounds deletion to recent upload sessions.
package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/recordkeeper/api/internal/cache"
	"github.com/recordkeeper/api/internal/db"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/models"
)

// Resolver checks entitlements for a (userId, formatId) pair.
//
// Stateless and safe for concurrent use; entitlement lookups hit cache
// first when one is configured, falling back to the database on a miss.
type Resolver struct {
	entitlementDB       *db.EntitlementDB
	cache               *cache.Cache
	cacheTTL            time.Duration
	temporalDeleteHours int
}

// NewResolver builds a Resolver. temporalDeleteHours bounds how far back a
// limitedDelete-only caller may reach. c may be nil or disabled, in which
// case every lookup goes straight to entitlementDB.
func NewResolver(entitlementDB *db.EntitlementDB, c *cache.Cache, cacheTTL time.Duration, temporalDeleteHours int) *Resolver {
	return &Resolver{entitlementDB: entitlementDB, cache: c, cacheTTL: cacheTTL, temporalDeleteHours: temporalDeleteHours}
}

// cachedEntitlement is the JSON shape stored under an EntitlementKey. Found
// distinguishes "no entitlement row" from "not yet cached", so a negative
// lookup is cached too rather than hitting the database on every call for a
// user with no grant on a format.
type cachedEntitlement struct {
	Found  bool     `json:"found"`
	Access []string `json:"access"`
}

// fetch resolves (userID, formatID)'s entitlement row, consulting the cache
// before the database and populating it on a miss.
func (r *Resolver) fetch(ctx context.Context, userID string, formatID int64) (*models.Entitlement, error) {
	key := cache.EntitlementKey(userID, formatID)
	if r.cache != nil && r.cache.IsEnabled() {
		var cached cachedEntitlement
		if err := r.cache.Get(ctx, key, &cached); err == nil {
			if !cached.Found {
				return nil, sql.ErrNoRows
			}
			return &models.Entitlement{UserID: userID, FormatID: formatID, Access: pq.StringArray(cached.Access)}, nil
		}
	}

	ent, err := r.entitlementDB.GetEntitlement(ctx, userID, formatID)
	if errors.Is(err, sql.ErrNoRows) {
		if r.cache != nil {
			_ = r.cache.Set(ctx, key, cachedEntitlement{Found: false}, r.cacheTTL)
		}
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, key, cachedEntitlement{Found: true, Access: []string(ent.Access)}, r.cacheTTL)
	}
	return ent, nil
}

// Invalidate evicts a cached entitlement decision. Handlers call this after
// SetEntitlement/DeleteEntitlement so the change is visible immediately
// rather than waiting out the cache TTL.
func (r *Resolver) Invalidate(ctx context.Context, userID string, formatID int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, cache.EntitlementKey(userID, formatID))
}

// Decision describes what a caller is entitled to do on one format.
type Decision struct {
	// Allowed reports whether the requested access kind is granted.
	Allowed bool

	// DeleteCutoff is non-zero when the caller's delete access is
	// limitedDelete-only: only upload sessions created at or after this
	// time may be deleted.
	DeleteCutoff time.Time
}

// Check resolves whether the principal may exercise kind on formatID.
// Superusers are always allowed with no cutoff.
func (r *Resolver) Check(ctx context.Context, userID string, isSuperuser bool, formatID int64, kind models.AccessKind) (Decision, error) {
	if isSuperuser {
		return Decision{Allowed: true}, nil
	}

	ent, err := r.fetch(ctx, userID, formatID)
	if errors.Is(err, sql.ErrNoRows) {
		return Decision{Allowed: false}, nil
	}
	if err != nil {
		return Decision{}, apierrors.StorageError(err)
	}

	if ent.Has(kind) {
		return Decision{Allowed: true}, nil
	}

	if kind == models.AccessDelete && ent.Has(models.AccessLimitedDelete) {
		cutoff := time.Now().Add(-time.Duration(r.temporalDeleteHours) * time.Hour)
		return Decision{Allowed: true, DeleteCutoff: cutoff}, nil
	}

	return Decision{Allowed: false}, nil
}

// Require is Check, converting a disallowed or errored outcome into a
// single *errors.AppError a handler can return directly.
func (r *Resolver) Require(ctx context.Context, userID string, isSuperuser bool, formatID int64, kind models.AccessKind) (Decision, *apierrors.AppError) {
	decision, err := r.Check(ctx, userID, isSuperuser, formatID, kind)
	if err != nil {
		var appErr *apierrors.AppError
		if errors.As(err, &appErr) {
			return Decision{}, appErr
		}
		return Decision{}, apierrors.StorageError(err)
	}
	if !decision.Allowed {
		return Decision{}, apierrors.Forbidden("caller lacks the required entitlement on this format")
	}
	return decision, nil
}

// ReadableFormatIDs returns the format IDs a principal may read. Superusers
// may read every format, signalled by a nil slice.
func (r *Resolver) ReadableFormatIDs(ctx context.Context, userID string, isSuperuser bool) ([]int64, error) {
	if isSuperuser {
		return nil, nil
	}
	ids, err := r.entitlementDB.ReadableFormatIDs(ctx, userID)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}
	return ids, nil
}
