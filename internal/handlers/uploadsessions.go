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
)

// ListUploadSessions handles GET /upload_session: the caller's own
// sessions, paginated.
func (h *Handlers) ListUploadSessions(c *gin.Context) {
	p := auth.CurrentPrincipal(c)
	page := httpx.ParsePage(c, h.cfg.DefaultPaginationSize, h.cfg.MaxPaginationSize)

	sessions, err := h.uploadSessionDB.ListUploadSessionsForUser(c.Request.Context(), p.UserID, page.Offset(), page.PerPage)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":   sessions,
		"page":    page.Page,
		"perPage": page.PerPage,
	})
}

// DeleteUploadSession handles DELETE /upload_session/{id}. Requires
// delete (or limitedDelete, bounded by the resolver's cutoff) on the
// session's format.
func (h *Handlers) DeleteUploadSession(c *gin.Context) {
	id := c.Param("id")

	session, err := h.uploadSessionDB.GetUploadSession(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		apierrors.HandleError(c, apierrors.NotFound("upload session"))
		return
	}
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}

	p := auth.CurrentPrincipal(c)
	decision, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, session.FormatID, models.AccessDelete)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}
	if !decision.DeleteCutoff.IsZero() && session.CreatedAt.Before(decision.DeleteCutoff) {
		apierrors.HandleError(c, apierrors.Forbidden("upload session is older than the limited delete window"))
		return
	}

	if err := h.uploadSessionDB.DeleteUploadSession(c.Request.Context(), id); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.Status(http.StatusNoContent)
}
