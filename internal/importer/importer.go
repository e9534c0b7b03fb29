package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fleetcare-backend/config"
	"fleetcare-backend/internal/model"
	"fleetcare-backend/internal/sheet"
	"fleetcare-backend/internal/source"
	"fleetcare-backend/internal/status"
	"fleetcare-backend/internal/store"
)

// ErrImportRunning is returned when an import is requested while a
// previous one is still in flight. There is a single import slot.
var ErrImportRunning = errors.New("an import is already running")

// AlertDispatcher queues critical maintenance alerts for push delivery.
type AlertDispatcher interface {
	Dispatch(alert status.CriticalAlert)
}

// Result summarizes one completed import run.
type Result struct {
	Rows       int      `json:"rows"`
	Equipment  int      `json:"equipment"`
	WorkOrders int      `json:"workOrders"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Service orchestrates the spreadsheet import process: it fetches the
// workbook through a transport connector, normalizes it and persists
// the outcome through the ledger.
type Service struct {
	cfg        *config.Config
	manager    *source.Manager
	ledger     store.Ledger
	dispatcher AlertDispatcher

	mu sync.Mutex
}

// NewService creates and initializes a new import service. dispatcher
// may be nil when push notifications are not configured.
func NewService(cfg *config.Config, manager *source.Manager, ledger store.Ledger, dispatcher AlertDispatcher) *Service {
	return &Service{
		cfg:        cfg,
		manager:    manager,
		ledger:     ledger,
		dispatcher: dispatcher,
	}
}

// ImportOnce runs a full import cycle against the given source
// configuration. Only one import runs at a time; concurrent callers
// get ErrImportRunning instead of queueing.
func (s *Service) ImportOnce(ctx context.Context, srcCfg source.SourceConfig) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrImportRunning
	}
	defer s.mu.Unlock()

	log.Printf("Starting import from %s source %q", srcCfg.ImportType, srcCfg.Address)
	started := time.Now()

	connector, err := source.New(srcCfg, source.Options{
		Timeout:     time.Duration(s.cfg.Importer.TimeoutSeconds) * time.Second,
		LocalMirror: s.cfg.Importer.LocalMirror,
	})
	if err != nil {
		return nil, err
	}

	path, err := connector.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer source.Discard(path)

	rows, err := sheet.ParseUsage(path, srcCfg.SheetName, srcCfg.HeaderRow)
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: len(rows)}

	usages := status.Aggregate(rows)
	for _, u := range usages {
		if err := s.ledger.UpsertEquipment(ctx, u.Tag, u.Category, u.Interval); err != nil {
			return nil, err
		}
		if err := s.ledger.SetLastService(ctx, u.Tag, u.LastReading); err != nil {
			return nil, err
		}
	}
	result.Equipment = len(usages)

	entries := make([]model.UsageLog, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, model.UsageLog{
			Tag:     row.Tag,
			Date:    row.Date,
			Reading: row.Reading,
		})
	}
	if err := s.ledger.AppendUsage(ctx, entries); err != nil {
		return nil, err
	}

	// The work-order sheet is an independent failure domain: a broken
	// or absent secondary sheet downgrades to a warning, never fails
	// an otherwise successful import.
	if srcCfg.WorkOrderSheet != "" {
		orders, err := sheet.ParseWorkOrders(path, srcCfg.WorkOrderSheet)
		if err != nil {
			log.Printf("Warning: work-order sheet import failed: %v", err)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("work-order sheet %q skipped: %v", srcCfg.WorkOrderSheet, err))
		} else {
			for _, order := range orders {
				if err := s.ledger.AppendWorkOrder(ctx, order); err != nil {
					log.Printf("Warning: failed to persist work order %s: %v", order.OrderNumber, err)
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("work order %s not persisted: %v", order.OrderNumber, err))
					continue
				}
				result.WorkOrders++
			}
		}
	}

	s.dispatchCriticalAlerts(ctx)

	log.Printf("Import finished in %s: %d rows, %d equipment, %d work orders, %d warnings",
		time.Since(started).Round(time.Millisecond),
		result.Rows, result.Equipment, result.WorkOrders, len(result.Warnings))
	return result, nil
}

// dispatchCriticalAlerts recomputes fleet status from the ledger and
// pushes one alert per overdue equipment.
func (s *Service) dispatchCriticalAlerts(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}

	rows, err := s.ledger.EquipmentWithLatestUsage(ctx)
	if err != nil {
		log.Printf("Error loading equipment for alert dispatch: %v", err)
		return
	}

	snaps := buildSnapshots(rows)
	alerts := status.BuildAlerts(snaps, time.Now())
	if len(alerts.Critical) == 0 {
		return
	}

	log.Printf("Dispatching %d critical alerts", len(alerts.Critical))
	for _, alert := range alerts.Critical {
		s.dispatcher.Dispatch(alert)
	}
}

func buildSnapshots(rows []store.EquipmentUsage) []status.Snapshot {
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
	return status.BuildAll(inputs)
}

// Run imports once at startup and then daily at the time configured in
// the source settings. It returns when ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	srcCfg, err := s.manager.Load()
	if err != nil {
		log.Printf("Error loading source configuration: %v", err)
		return
	}
	if !srcCfg.Enabled {
		log.Println("Importer is disabled. Not starting.")
		return
	}
	log.Println("Starting import service...")

	if _, err := s.ImportOnce(ctx, srcCfg); err != nil {
		log.Printf("Startup import failed: %v", err)
	}

	loc, err := time.LoadLocation(s.cfg.Importer.Timezone)
	if err != nil {
		log.Printf("Warning: invalid timezone %q, falling back to UTC: %v", s.cfg.Importer.Timezone, err)
		loc = time.UTC
	}

	timer := time.NewTimer(untilNextRun(time.Now().In(loc), srcCfg.ImportHour, srcCfg.ImportMinute))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Import service shutting down.")
			return
		case <-timer.C:
			// Reload so schedule and source edits made through the
			// API apply without a restart.
			srcCfg, err = s.manager.Load()
			if err != nil {
				log.Printf("Error reloading source configuration: %v", err)
			} else if !srcCfg.AutoImport {
				log.Println("Automatic import is disabled; skipping scheduled run.")
			} else if _, err := s.ImportOnce(ctx, srcCfg); err != nil {
				log.Printf("Scheduled import failed: %v", err)
			}
			timer.Reset(untilNextRun(time.Now().In(loc), srcCfg.ImportHour, srcCfg.ImportMinute))
		}
	}
}

// untilNextRun computes the wait until the next HH:MM occurrence in
// now's location, always in the future.
func untilNextRun(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
