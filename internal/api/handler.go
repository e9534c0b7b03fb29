package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"fleetcare-backend/internal/importer"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/status"
	"fleetcare-backend/internal/store"
)

// Importer runs one import cycle. Satisfied by importer.Service.
type Importer interface {
	ImportOnce(ctx context.Context, cfg source.SourceConfig) (*importer.Result, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	ledger     store.Ledger
	importer   Importer
	manager    *source.Manager
	webpush    *webpush.Options
	cacheStore *cache.Cache
	timeout    time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(ledger store.Ledger, imp Importer, manager *source.Manager, webpushOptions *webpush.Options, cacheStore *cache.Cache, timeout time.Duration) *Handler {
	return &Handler{
		ledger:     ledger,
		importer:   imp,
		manager:    manager,
		webpush:    webpushOptions,
		cacheStore: cacheStore,
		timeout:    timeout,
	}
}

// snapshots loads the fleet from the ledger and derives status for
// every equipment.
func (h *Handler) snapshots(ctx context.Context) ([]status.Snapshot, error) {
	rows, err := h.ledger.EquipmentWithLatestUsage(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]status.Input, 0, len(rows))
	for _, r := range rows {
		inputs = append(inputs, status.Input{
			Tag:         r.Equipment.Tag,
			Category:    r.Equipment.Category,
			Interval:    r.Equipment.IntervalUnits,
			LastService: r.Equipment.LastServiceReading,
			Latest:      r.Latest,
			HasUsage:    r.HasUsage,
			LastUpdate:  r.LatestDate,
		})
	}
	return status.BuildAll(inputs), nil
}
