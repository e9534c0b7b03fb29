package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetcare-backend/internal/status"
)

// GetDashboard returns the per-class summary plus one status snapshot
// per equipment.
func (h *Handler) GetDashboard(c *gin.Context) {
	snaps, err := h.snapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":   status.Summarize(snaps),
		"equipment": snaps,
	})
}

// GetAlerts returns the classified alert buckets and fleet statistics.
func (h *Handler) GetAlerts(c *gin.Context) {
	snaps, err := h.snapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status.BuildAlerts(snaps, time.Now()))
}

// GetTags returns every known equipment tag, sorted.
func (h *Handler) GetTags(c *gin.Context) {
	tags, err := h.ledger.Tags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}
