package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/auth"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/models"
	"github.com/recordkeeper/api/internal/query"
	"github.com/recordkeeper/api/internal/validator"
)

// CreateRecords handles POST /record: ingests a batch of rows into a new
// upload session. Requires write entitlement on the format.
func (h *Handlers) CreateRecords(c *gin.Context) {
	var req models.IngestRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	format, appErr := h.loadFormat(c, req.FormatID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	p := auth.CurrentPrincipal(c)
	if _, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, req.FormatID, models.AccessWrite); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	resp, err := h.ingest.Ingest(c.Request.Context(), format, p.UserID, req.Data)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// FilterRecords handles POST /record/filter. Requires read entitlement.
func (h *Handlers) FilterRecords(c *gin.Context) {
	var req query.Request
	if !validator.BindAndValidate(c, &req) {
		return
	}

	format, appErr := h.loadFormat(c, req.FormatID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	p := auth.CurrentPrincipal(c)
	if _, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, req.FormatID, models.AccessRead); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	result, err := h.query.Run(c.Request.Context(), format, req, h.cfg.ReturnQueryCount)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FilterRecordsStream handles POST /record/filter-stream: the same filter
// as FilterRecords, but the matching records are streamed back as CSV
// rather than paginated JSON. Bounded by DB_MAX_STREAMS_PER_USER concurrent
// exports; released when the response body finishes or the client
// disconnects.
func (h *Handlers) FilterRecordsStream(c *gin.Context) {
	var req query.Request
	if !validator.BindAndValidate(c, &req) {
		return
	}

	format, appErr := h.loadFormat(c, req.FormatID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	p := auth.CurrentPrincipal(c)
	if _, appErr := h.resolver.Require(c.Request.Context(), p.UserID, p.IsSuperuser, req.FormatID, models.AccessRead); appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}

	release, appErr := h.streamCap.Acquire(c.Request.Context(), p.UserID)
	if appErr != nil {
		apierrors.HandleError(c, appErr)
		return
	}
	defer release()

	whereSQL, whereArgs, err := query.Compile(format, req)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=\""+format.Name+".csv\"")
	c.Status(http.StatusOK)

	if err := h.csv.Stream(c.Request.Context(), c.Writer, format, whereSQL, whereArgs); err != nil {
		// Headers are already flushed; nothing more to send the client
		// beyond truncating the body, but the failure still belongs in
		// the logs.
		logger.Stream().Error().Err(err).Int64("formatId", format.ID).Msg("csv stream failed")
	}
}
