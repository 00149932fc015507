package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/httpx"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/validator"
)

// CreateUser handles POST /user. Requires superuser.
func (h *Handlers) CreateUser(c *gin.Context) {
	if p := auth.CurrentPrincipal(c); p == nil || !p.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("superuser access required"))
		return
	}

	var req models.CreateUserRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	user, err := h.userDB.CreateUser(c.Request.Context(), req.Username, hash, req.IsSuperuser)
	if err != nil {
		apierrors.HandleError(c, mapUniqueViolation(err, "username already in use"))
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers handles GET /user. Requires superuser. The store has no native
// offset/limit for users (a small, admin-only table), so pagination is
// applied in-process over the full list.
func (h *Handlers) ListUsers(c *gin.Context) {
	page := httpx.ParsePage(c, h.cfg.DefaultPaginationSize, h.cfg.MaxPaginationSize)

	users, err := h.userDB.ListUsers(c.Request.Context())
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	start := page.Offset()
	if start > len(users) {
		start = len(users)
	}
	end := start + page.PerPage
	if end > len(users) {
		end = len(users)
	}

	c.JSON(http.StatusOK, gin.H{
		"items":   users[start:end],
		"page":    page.Page,
		"perPage": page.PerPage,
	})
}

// GetUser handles GET /user/{id}. Caller must be the user or a superuser.
func (h *Handlers) GetUser(c *gin.Context) {
	id := c.Param("id")
	if !h.requireSelfOrSuperuser(c, id) {
		return
	}

	user, err := h.userDB.GetUser(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.HandleError(c, apierrors.NotFound("user"))
		return
	}
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser handles PATCH /user/{id}. Changing isSuperuser requires the
// caller to already be a superuser; if PROTECT_SUPERUSER is set, an
// existing superuser may not be demoted via this endpoint.
func (h *Handlers) UpdateUser(c *gin.Context) {
	id := c.Param("id")
	if !h.requireSelfOrSuperuser(c, id) {
		return
	}

	var req models.UpdateUserRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	principal := auth.CurrentPrincipal(c)
	if req.IsSuperuser != nil && !principal.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("only a superuser may change isSuperuser"))
		return
	}

	target, err := h.userDB.GetUser(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.HandleError(c, apierrors.NotFound("user"))
		return
	}
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	if h.cfg.ProtectSuperuser && target.IsSuperuser && req.IsSuperuser != nil && !*req.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("superuser accounts may not be demoted"))
		return
	}

	var passwordHash *string
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			apierrors.HandleError(c, apierrors.StorageError(err))
			return
		}
		passwordHash = &hash
	}

	if err := h.userDB.UpdateUser(c.Request.Context(), id, req.Username, passwordHash, req.IsSuperuser); err != nil {
		apierrors.HandleError(c, mapUniqueViolation(err, "username already in use"))
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUser handles DELETE /user/{id}.
func (h *Handlers) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if !h.requireSelfOrSuperuser(c, id) {
		return
	}

	target, err := h.userDB.GetUser(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.HandleError(c, apierrors.NotFound("user"))
		return
	}
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	if h.cfg.ProtectSuperuser && target.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("superuser accounts may not be deleted"))
		return
	}

	if err := h.userDB.DeleteUser(c.Request.Context(), id); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// requireSelfOrSuperuser aborts with Forbidden unless the caller is userID
// or a superuser, returning whether the caller may proceed.
func (h *Handlers) requireSelfOrSuperuser(c *gin.Context, userID string) bool {
	p := auth.CurrentPrincipal(c)
	if p == nil {
		apierrors.HandleError(c, apierrors.AuthInvalid())
		return false
	}
	if p.UserID != userID && !p.IsSuperuser {
		apierrors.HandleError(c, apierrors.Forbidden("not authorized for this user"))
		return false
	}
	return true
}
