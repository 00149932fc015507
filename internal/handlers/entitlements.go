package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/validator"
)

// SetEntitlement handles POST /entitlement. Superuser only. Every grant is
// logged to the security log with the actor, the target user/format, and
// the resulting access set.
func (h *Handlers) SetEntitlement(c *gin.Context) {
	var req models.SetEntitlementRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	ent, err := h.entitlementDB.SetEntitlement(c.Request.Context(), req.UserID, req.FormatID, req.Access)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	h.resolver.Invalidate(c.Request.Context(), req.UserID, req.FormatID)

	actor := auth.CurrentPrincipal(c)
	logger.Security().Info().
		Str("actor", actor.UserID).
		Str("targetUser", req.UserID).
		Int64("formatId", req.FormatID).
		Strs("access", req.Access).
		Msg("entitlement set")

	c.JSON(http.StatusOK, ent)
}

// GetEntitlements handles GET /entitlement?userId=. Caller must be the
// named user or a superuser; defaults to the caller's own entitlements.
func (h *Handlers) GetEntitlements(c *gin.Context) {
	userID := c.Query("userId")
	p := auth.CurrentPrincipal(c)
	if userID == "" {
		userID = p.UserID
	}
	if userID != p.UserID && !p.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("not authorized for this user"))
		return
	}

	if formatIDParam := c.Query("formatId"); formatIDParam != "" {
		formatID, err := strconv.ParseInt(formatIDParam, 10, 64)
		if err != nil {
			apierrors.HandleError(c, apierrors.BadRequest("formatId must be an integer"))
			return
		}
		ent, err := h.entitlementDB.GetEntitlement(c.Request.Context(), userID, formatID)
		if errors.Is(err, sql.ErrNoRows) {
			apierrors.HandleError(c, apierrors.NotFound("entitlement"))
			return
		}
		if err != nil {
			apierrors.HandleError(c, apierrors.StorageError(err))
			return
		}
		c.JSON(http.StatusOK, ent)
		return
	}

	ents, err := h.entitlementDB.ListEntitlementsForUser(c.Request.Context(), userID)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ents})
}

// DeleteEntitlement handles DELETE /entitlement?userId=&formatId=.
// Superuser only; logged like SetEntitlement.
func (h *Handlers) DeleteEntitlement(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		apierrors.HandleError(c, apierrors.BadRequest("userId is required"))
		return
	}
	formatID, err := strconv.ParseInt(c.Query("formatId"), 10, 64)
	if err != nil {
		apierrors.HandleError(c, apierrors.BadRequest("formatId must be an integer"))
		return
	}

	if err := h.entitlementDB.DeleteEntitlement(c.Request.Context(), userID, formatID); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	h.resolver.Invalidate(c.Request.Context(), userID, formatID)

	actor := auth.CurrentPrincipal(c)
	logger.Security().Info().
		Str("actor", actor.UserID).
		Str("targetUser", userID).
		Int64("formatId", formatID).
		Msg("entitlement revoked")

	c.Status(http.StatusNoContent)
}
