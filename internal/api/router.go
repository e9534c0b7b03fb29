package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fleetcare-backend/internal/mw"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/store"
)

// RouterOptions bundles the tunables the router needs from the
// application configuration.
type RouterOptions struct {
	RateLimitPerSec float64
	CacheTTL        time.Duration
	SourceTimeout   time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(ledger store.Ledger, imp Importer, manager *source.Manager, webpushOptions *webpush.Options, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 30 * time.Second
	}

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), int(opts.RateLimitPerSec)/2+1)

	handler := NewHandler(ledger, imp, manager, webpushOptions, cacheStore, opts.SourceTimeout)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/dashboard", caching, handler.GetDashboard)
		api.GET("/dashboard/alerts", caching, handler.GetAlerts)
		api.GET("/dashboard/tags", caching, handler.GetTags)

		api.GET("/equipment", caching, handler.GetEquipment)
		api.GET("/equipment/:tag", caching, handler.GetEquipmentByTag)
		api.PUT("/equipment/:tag/interval", handler.PutInterval)
		api.DELETE("/equipment/:tag/interval", handler.DeleteInterval)

		api.GET("/workorders", caching, handler.GetWorkOrders)

		api.POST("/import", handler.PostImport)
		api.GET("/export", handler.GetExport)

		api.GET("/config", handler.GetSourceConfig)
		api.POST("/config", handler.PostSourceConfig)
		api.POST("/config/test", handler.TestSourceConfig)
		api.POST("/config/import", handler.ImportWithConfig)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
