package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/validator"
)

// CreateApiKey handles POST /user/{id}/api-key. Caller must be the target
// user or a superuser; MAX_API_KEYS_PER_USER bounds how many active keys a
// user may hold at once.
func (h *Handlers) CreateApiKey(c *gin.Context) {
	userID := c.Param("id")
	if !h.requireSelfOrSuperuser(c, userID) {
		return
	}

	count, err := h.apiKeyDB.CountActiveApiKeys(c.Request.Context(), userID)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	if count >= h.cfg.MaxAPIKeysPerUser {
		apierrors.HandleError(c, apierrors.Conflict("maximum active API keys reached for this user"))
		return
	}

	plain, hash, err := auth.GenerateAPIKeySecret()
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	expiresAt := time.Now().Add(time.Duration(h.cfg.TokenAPIKeyExpirationHours) * time.Hour)

	key, err := h.apiKeyDB.CreateApiKey(c.Request.Context(), userID, hash, expiresAt)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	c.JSON(http.StatusCreated, models.CreateApiKeyResponse{ApiKey: key, Secret: plain})
}

// UpdateApiKey handles PATCH /user/{id}/api-key. Only {rotate:true} is
// defined; the path names no specific key, so rotation targets the
// caller's sole active key (ambiguous when there is more than one —
// callers managing several keys must disambiguate via ?keyId=).
func (h *Handlers) UpdateApiKey(c *gin.Context) {
	userID := c.Param("id")
	if !h.requireSelfOrSuperuser(c, userID) {
		return
	}

	var req models.RotateApiKeyRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	if !req.Rotate {
		apierrors.HandleError(c, apierrors.BadRequest("only rotate:true is supported"))
		return
	}

	key, appErr := h.resolveTargetApiKey(c, userID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	plain, hash, err := auth.GenerateAPIKeySecret()
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	expiresAt := time.Now().Add(time.Duration(h.cfg.TokenAPIKeyExpirationHours) * time.Hour)

	if err := h.apiKeyDB.RotateApiKey(c.Request.Context(), key.ID, hash, expiresAt); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	key.ExpiresAt = expiresAt
	c.JSON(http.StatusOK, models.CreateApiKeyResponse{ApiKey: key, Secret: plain})
}

// DeleteApiKey handles DELETE /user/{id}/api-key.
func (h *Handlers) DeleteApiKey(c *gin.Context) {
	userID := c.Param("id")
	if !h.requireSelfOrSuperuser(c, userID) {
		return
	}

	key, appErr := h.resolveTargetApiKey(c, userID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	if err := h.apiKeyDB.DeleteApiKey(c.Request.Context(), key.ID); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListApiKeys handles GET /user/api-key: the caller's own keys.
func (h *Handlers) ListApiKeys(c *gin.Context) {
	p := auth.CurrentPrincipal(c)
	keys, err := h.apiKeyDB.ListApiKeysForUser(c.Request.Context(), p.UserID)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": keys})
}

// resolveTargetApiKey picks the key a PATCH/DELETE without a key id in its
// path should act on: the explicit ?keyId= if given, else the caller's
// sole active key.
func (h *Handlers) resolveTargetApiKey(c *gin.Context, userID string) (*models.ApiKey, *apierrors.AppError) {
	if keyID := c.Query("keyId"); keyID != "" {
		key, err := h.apiKeyDB.GetApiKey(c.Request.Context(), keyID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierrors.NotFound("api key")
		}
		if err != nil {
			return nil, apierrors.StorageError(err)
		}
		if key.UserID != userID {
			return nil, apierrors.Forbidden("api key does not belong to this user")
		}
		return key, nil
	}

	all, err := h.apiKeyDB.ListApiKeysForUser(c.Request.Context(), userID)
	if err != nil {
		return nil, apierrors.StorageError(err)
	}
	var keys []*models.ApiKey
	for _, k := range all {
		if k.Active {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, apierrors.NotFound("api key")
	}
	if len(keys) > 1 {
		return nil, apierrors.BadRequest("user has more than one active api key; specify ?keyId=")
	}
	return keys[0], nil
}
