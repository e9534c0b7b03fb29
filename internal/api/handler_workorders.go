package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetcare-backend/internal/sheet"
)

// GetWorkOrders lists recorded work orders, newest scheduled first. An
// optional ?tag= query narrows the list to one equipment.
func (h *Handler) GetWorkOrders(c *gin.Context) {
	tag := c.Query("tag")
	if tag != "" {
		tag = sheet.NormalizeTag(tag)
	}

	orders, err := h.ledger.WorkOrders(c.Request.Context(), tag)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, orders)
}
