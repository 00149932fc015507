package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/validator"
)

// Login handles POST /login. A failed lookup and a failed password verify
// return the identical AuthInvalid response — the caller never learns
// whether the username existed.
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	user, err := h.userDB.GetUserByUsername(c.Request.Context(), req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Security().Warn().Str("username", req.Username).Msg("login failed: unknown username")
		apierrors.HandleError(c, apierrors.AuthInvalid())
		return
	}
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Security().Warn().Str("username", req.Username).Msg("login failed: bad password")
		apierrors.HandleError(c, apierrors.AuthInvalid())
		return
	}

	token, err := h.signer.Issue(auth.IssueParams{
		UserID:      user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		Kind:        auth.TokenKindPassword,
		TTL:         time.Duration(h.cfg.TokenExpirationSeconds) * time.Second,
	})
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{Token: token})
}

// ValidateToken handles POST /user/token/validate: the auth middleware has
// already verified the bearer token by the time this runs, so it just
// echoes back the resolved principal.
func (h *Handlers) ValidateToken(c *gin.Context) {
	p := auth.CurrentPrincipal(c)
	if p == nil {
		apierrors.HandleError(c, apierrors.AuthInvalid())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":      p.UserID,
		"username":    p.Username,
		"isSuperuser": p.IsSuperuser,
		"tokenKind":   p.TokenKind,
	})
}
