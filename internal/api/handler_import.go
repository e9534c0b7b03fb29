package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/mw"
	"fleetcare-backend/internal/status"
)

// PostImport triggers an import using the saved source configuration.
func (h *Handler) PostImport(c *gin.Context) {
	srcCfg, err := h.manager.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.importer.ImportOnce(c.Request.Context(), srcCfg)
	if err != nil {
		if errors.Is(err, importer.ErrImportRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Manual import failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	mw.Invalidate(h.cacheStore)
	c.JSON(http.StatusOK, result)
}

// GetExport streams the current fleet status as an xlsx workbook.
func (h *Handler) GetExport(c *gin.Context) {
	snaps, err := h.snapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "STATUS"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	header := []any{"TAG", "CATEGORIA", "INTERVALO", "ÚLTIMA REVISÃO", "ATUAL", "USO", "PERCENTUAL", "STATUS", "ÚLTIMA ATUALIZAÇÃO"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for i, snap := range snaps {
		row := exportRow(snap)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("frota-status-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func exportRow(snap status.Snapshot) []any {
	lastUpdate := ""
	if !snap.LastUpdate.IsZero() {
		lastUpdate = snap.LastUpdate.Format("2006-01-02")
	}
	return []any{
		snap.Tag,
		snap.Category,
		snap.Interval,
		snap.LastService,
		snap.Current,
		snap.Usage,
		snap.Percent,
		string(snap.Class),
		lastUpdate,
	}
}
