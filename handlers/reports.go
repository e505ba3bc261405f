package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"houtveilig/models"
	"houtveilig/overview"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// ListReports handles GET /api/v1/reports
func (h *Handlers) ListReports(c *gin.Context) {
	reports := h.Reports.List()
	c.JSON(http.StatusOK, gin.H{
		"reports": overview.Cards(reports),
		"count":   len(reports),
	})
}

// ReportsPage handles GET /reports
func (h *Handlers) ReportsPage(c *gin.Context) {
	var buf bytes.Buffer
	if err := overview.Render(&buf, h.Reports.List()); err != nil {
		log.WithError(err).Error("failed to render report list")
		c.String(http.StatusInternalServerError, "could not render reports")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return 0, false
	}
	return id, true
}

// GetReport handles GET /api/v1/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	report, found := h.Reports.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// DeleteReport handles DELETE /api/v1/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	if !h.Reports.Delete(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	h.Hub.Toast(models.NoticeWarning, "Report deleted")
	c.Status(http.StatusNoContent)
}

// ClearReports handles DELETE /api/v1/reports?confirm=true
func (h *Handlers) ClearReports(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirm=true required to delete all reports"})
		return
	}
	h.Reports.ClearAll(c.Request.Context())
	h.Hub.Toast(models.NoticeWarning, "All reports deleted")
	c.Status(http.StatusNoContent)
}

// ExportGeoJSON handles GET /api/v1/reports/export.geojson
func (h *Handlers) ExportGeoJSON(c *gin.Context) {
	data, err := overview.GeoJSON(h.Reports.List())
	if err != nil {
		log.WithError(err).Error("failed to export reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reports.geojson"`)
	c.Data(http.StatusOK, "application/geo+json", data)
}

func bindRaw(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}
