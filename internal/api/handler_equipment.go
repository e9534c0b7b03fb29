package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fleetcare-backend/internal/mw"
	"fleetcare-backend/internal/sheet"
	"fleetcare-backend/internal/status"
)

// usageHistoryLimit caps the usage entries returned per equipment.
const usageHistoryLimit = 30

// GetEquipment returns a status snapshot for every equipment.
func (h *Handler) GetEquipment(c *gin.Context) {
	snaps, err := h.snapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snaps)
}

// GetEquipmentByTag returns one snapshot plus recent usage history.
func (h *Handler) GetEquipmentByTag(c *gin.Context) {
	ctx := c.Request.Context()
	tag := sheet.NormalizeTag(c.Param("tag"))

	eu, err := h.ledger.EquipmentUsageByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "equipment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	history, err := h.ledger.UsageHistory(ctx, tag, usageHistoryLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snap := status.Build(status.Input{
		Tag:         eu.Equipment.Tag,
		Category:    eu.Equipment.Category,
		Interval:    eu.Equipment.IntervalUnits,
		LastService: eu.Equipment.LastServiceReading,
		Latest:      eu.Latest,
		HasUsage:    eu.HasUsage,
		LastUpdate:  eu.LatestDate,
	})

	c.JSON(http.StatusOK, gin.H{
		"equipment": snap,
		"history":   history,
	})
}

type putIntervalRequest struct {
	Interval float64 `json:"interval" binding:"min=0"`
}

// PutInterval sets the maintenance interval for one equipment.
func (h *Handler) PutInterval(c *gin.Context) {
	var req putIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.setInterval(c, req.Interval)
}

// DeleteInterval clears the interval, returning the equipment to the
// "no interval configured" state.
func (h *Handler) DeleteInterval(c *gin.Context) {
	h.setInterval(c, 0)
}

func (h *Handler) setInterval(c *gin.Context, interval float64) {
	tag := sheet.NormalizeTag(c.Param("tag"))

	err := h.ledger.SetInterval(c.Request.Context(), tag, interval)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "equipment not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	mw.Invalidate(h.cacheStore)
	c.JSON(http.StatusOK, gin.H{"tag": tag, "interval": interval})
}
