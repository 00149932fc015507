package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/httpx"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/validator"
)

// CreateFormat handles POST /format. Any authenticated caller may create a
// format; schema becomes immutable the moment this returns.
func (h *Handlers) CreateFormat(c *gin.Context) {
	var req models.CreateFormatRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		apierrors.HandleError(c, apierrors.BadRequest(err.Error()))
		return
	}

	p := auth.CurrentPrincipal(c)
	format, err := h.formatDB.CreateFormat(c.Request.Context(), req.Name, req.Description, req.Schema, p.UserID)
	if err != nil {
		apierrors.HandleError(c, mapUniqueViolation(err, "format name already in use"))
		return
	}
	c.JSON(http.StatusCreated, format)
}

// ListFormats handles GET /format: paginated, filtered to formats the
// caller is entitled to read.
func (h *Handlers) ListFormats(c *gin.Context) {
	p := auth.CurrentPrincipal(c)
	page := httpx.ParsePage(c, h.cfg.DefaultPaginationSize, h.cfg.MaxPaginationSize)

	ids, err := h.resolver.ReadableFormatIDs(c.Request.Context(), p.UserID, p.IsSuperuser)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}

	formats, err := h.formatDB.ListFormats(c.Request.Context(), ids, page.Offset(), page.PerPage)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":   formats,
		"page":    page.Page,
		"perPage": page.PerPage,
	})
}

// GetFormat handles GET /format/{id}. Requires read entitlement.
func (h *Handlers) GetFormat(c *gin.Context) {
	formatID, ok := parseFormatID(c)
	if !ok {
		return
	}

	format, appErr := h.loadFormat(c, formatID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	p := auth.CurrentPrincipal(c)
	if _, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, formatID, models.AccessRead); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}
	c.JSON(http.StatusOK, format)
}

// DeleteFormat handles DELETE /format/{id}. Refused while any upload
// session still references the format — the caller must delete those
// first (cascading their records), then delete the format.
func (h *Handlers) DeleteFormat(c *gin.Context) {
	formatID, ok := parseFormatID(c)
	if !ok {
		return
	}

	if _, appErr := h.loadFormat(c, formatID); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	p := auth.CurrentPrincipal(c)
	if _, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, formatID, models.AccessDelete); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	hasSessions, err := h.formatDB.HasUploadSessions(c.Request.Context(), formatID)
	if err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	if hasSessions {
		apierrors.HandleError(c, apierrors.Conflict("format has upload sessions; delete them first"))
		return
	}

	if err := h.formatDB.DeleteFormat(c.Request.Context(), formatID); err != nil {
		apierrors.HandleError(c, apierrors.StorageError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) loadFormat(c *gin.Context, formatID int64) (*models.Format, *apierrors.AppError) {
	format, err := h.formatDB.GetFormat(c.Request.Context(), formatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("format")
	}
	if err != nil {
		return nil, apierrors.StorageError(err)
	}
	return format, nil
}

func parseFormatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.HandleError(c, apierrors.BadRequest("format id must be an integer"))
		return 0, false
	}
	return id, true
}
