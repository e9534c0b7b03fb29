package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/mw"
	"fleetcare-backend/internal/source"
)

// GetSourceConfig returns the saved source settings. The password never
// leaves the server; hasPassword tells the UI whether one is stored.
func (h *Handler) GetSourceConfig(c *gin.Context) {
	cfg, err := h.manager.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	hasPassword := cfg.Password != ""
	cfg.Password = ""
	c.JSON(http.StatusOK, gin.H{
		"config":      cfg,
		"hasPassword": hasPassword,
	})
}

// PostSourceConfig saves new source settings. An empty password keeps
// the stored one, so the UI can round-trip the form without it.
func (h *Handler) PostSourceConfig(c *gin.Context) {
	cfg, ok := h.bindSourceConfig(c)
	if !ok {
		return
	}

	if err := h.manager.Save(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// TestSourceConfig probes the posted settings without saving them.
func (h *Handler) TestSourceConfig(c *gin.Context) {
	cfg, ok := h.bindSourceConfig(c)
	if !ok {
		return
	}

	connector, err := source.New(cfg, source.Options{Timeout: h.timeout})
	if err != nil {
		h.sourceError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	info, err := connector.Probe(ctx)
	if err != nil {
		h.sourceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"detail": info.Detail,
		"size":   info.Size,
	})
}

// ImportWithConfig runs one import using the posted settings, without
// persisting them. Used to try out a new source before committing it.
func (h *Handler) ImportWithConfig(c *gin.Context) {
	cfg, ok := h.bindSourceConfig(c)
	if !ok {
		return
	}

	result, err := h.importer.ImportOnce(c.Request.Context(), cfg)
	if err != nil {
		if errors.Is(err, importer.ErrImportRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Ad-hoc import failed: %v", err)
		h.sourceError(c, err)
		return
	}

	mw.Invalidate(h.cacheStore)
	c.JSON(http.StatusOK, result)
}

// bindSourceConfig decodes the request body and falls back to the
// stored password when the client sent none.
func (h *Handler) bindSourceConfig(c *gin.Context) (source.SourceConfig, bool) {
	cfg := source.DefaultSourceConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return source.SourceConfig{}, false
	}

	if cfg.Password == "" {
		if saved, err := h.manager.Load(); err == nil {
			cfg.Password = saved.Password
		}
	}
	return cfg, true
}

// sourceError maps connector error kinds onto HTTP statuses.
func (h *Handler) sourceError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case source.IsKind(err, source.KindInvalidPath):
		code = http.StatusBadRequest
	case source.IsKind(err, source.KindAuthFailed):
		code = http.StatusUnauthorized
	case source.IsKind(err, source.KindNotFound):
		code = http.StatusNotFound
	case source.IsKind(err, source.KindTransport):
		code = http.StatusBadGateway
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
