// Package store is the persistence boundary: the import pipeline and
// the HTTP layer talk to a Ledger, never to gorm directly.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetcare-backend/internal/model"
)

// EquipmentUsage pairs an equipment record with its latest observed
// usage entry, if any.
type EquipmentUsage struct {
	Equipment  model.Equipment
	Latest     float64
	LatestDate time.Time
	HasUsage   bool
}

// Ledger defines all database operations the core needs. Equipment
// rows are upserted (created on first sighting, never destructively
// overwritten); usage and work-order rows are append-only.
type Ledger interface {
	// UpsertEquipment creates the equipment on first sighting and
	// refreshes its interval on every import. Category is only written
	// at creation time.
	UpsertEquipment(ctx context.Context, tag, category string, interval float64) error
	// SetLastService fills the last-service reading only when it is
	// still unset; an established value is preserved.
	SetLastService(ctx context.Context, tag string, reading float64) error
	// SetInterval overwrites the maintenance interval. Setting 0 clears
	// it (the "no interval configured" sentinel).
	SetInterval(ctx context.Context, tag string, interval float64) error
	AppendUsage(ctx context.Context, entries []model.UsageLog) error
	AppendWorkOrder(ctx context.Context, order model.WorkOrder) error
	// WorkOrders lists recorded work orders, newest scheduled first.
	// An empty tag lists the whole fleet.
	WorkOrders(ctx context.Context, tag string) ([]model.WorkOrder, error)

	EquipmentWithLatestUsage(ctx context.Context) ([]EquipmentUsage, error)
	EquipmentUsageByTag(ctx context.Context, tag string) (EquipmentUsage, error)
	UsageHistory(ctx context.Context, tag string, limit int) ([]model.UsageLog, error)
	Tags(ctx context.Context) ([]string, error)

	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)

	// DB exposes the underlying handle for thin read-only handlers.
	DB() *gorm.DB
}

// gormLedger implements Ledger using GORM.
type gormLedger struct {
	db *gorm.DB
}

// NewGormLedger creates a new GORM-backed ledger.
func NewGormLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) DB() *gorm.DB { return l.db }

func (l *gormLedger) UpsertEquipment(ctx context.Context, tag, category string, interval float64) error {
	eq := model.Equipment{
		Tag:           tag,
		Category:      category,
		IntervalUnits: interval,
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{"interval_units", "updated_at"}),
	}).Create(&eq).Error
	if err != nil {
		return fmt.Errorf("failed to upsert equipment %s: %w", tag, err)
	}
	return nil
}

func (l *gormLedger) SetLastService(ctx context.Context, tag string, reading float64) error {
	err := l.db.WithContext(ctx).Model(&model.Equipment{}).
		Where("tag = ? AND last_service_reading = 0", tag).
		Update("last_service_reading", reading).Error
	if err != nil {
		return fmt.Errorf("failed to set last service for %s: %w", tag, err)
	}
	return nil
}

func (l *gormLedger) SetInterval(ctx context.Context, tag string, interval float64) error {
	res := l.db.WithContext(ctx).Model(&model.Equipment{}).
		Where("tag = ?", tag).
		Update("interval_units", interval)
	if res.Error != nil {
		return fmt.Errorf("failed to set interval for %s: %w", tag, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (l *gormLedger) AppendUsage(ctx context.Context, entries []model.UsageLog) error {
	if len(entries) == 0 {
		return nil
	}
	if err := l.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to append usage entries: %w", err)
	}
	return nil
}

func (l *gormLedger) AppendWorkOrder(ctx context.Context, order model.WorkOrder) error {
	if err := l.db.WithContext(ctx).Create(&order).Error; err != nil {
		return fmt.Errorf("failed to append work order for %s: %w", order.Tag, err)
	}
	return nil
}

func (l *gormLedger) WorkOrders(ctx context.Context, tag string) ([]model.WorkOrder, error) {
	q := l.db.WithContext(ctx).Order("scheduled_date DESC, id DESC")
	if tag != "" {
		q = q.Where("tag = ?", tag)
	}
	var orders []model.WorkOrder
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}
	return orders, nil
}

// usageAgg is the per-tag rollup of the usage log.
type usageAgg struct {
	MaxReading float64
	MaxDate    time.Time
}

// usageAggregates folds the usage log per tag in Go rather than with
// MAX() expressions: aggregate columns lose their declared type on
// SQLite, which breaks time.Time scanning, and the log stays small
// enough (one row per equipment per day) for this to be cheap.
func (l *gormLedger) usageAggregates(ctx context.Context, tag string) (map[string]usageAgg, error) {
	var entries []model.UsageLog
	q := l.db.WithContext(ctx).Select("tag", "date", "reading")
	if tag != "" {
		q = q.Where("tag = ?", tag)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load usage log: %w", err)
	}

	out := make(map[string]usageAgg)
	for _, e := range entries {
		agg, ok := out[e.Tag]
		if !ok {
			out[e.Tag] = usageAgg{MaxReading: e.Reading, MaxDate: e.Date}
			continue
		}
		if e.Reading > agg.MaxReading {
			agg.MaxReading = e.Reading
		}
		if e.Date.After(agg.MaxDate) {
			agg.MaxDate = e.Date
		}
		out[e.Tag] = agg
	}
	return out, nil
}

func (l *gormLedger) EquipmentWithLatestUsage(ctx context.Context) ([]EquipmentUsage, error) {
	var equipment []model.Equipment
	if err := l.db.WithContext(ctx).Order("tag").Find(&equipment).Error; err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}

	aggMap, err := l.usageAggregates(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make([]EquipmentUsage, 0, len(equipment))
	for _, eq := range equipment {
		eu := EquipmentUsage{Equipment: eq}
		if agg, ok := aggMap[eq.Tag]; ok {
			eu.Latest = agg.MaxReading
			eu.LatestDate = agg.MaxDate
			eu.HasUsage = true
		}
		out = append(out, eu)
	}
	return out, nil
}

func (l *gormLedger) EquipmentUsageByTag(ctx context.Context, tag string) (EquipmentUsage, error) {
	var eq model.Equipment
	if err := l.db.WithContext(ctx).First(&eq, "tag = ?", tag).Error; err != nil {
		return EquipmentUsage{}, err
	}

	eu := EquipmentUsage{Equipment: eq}
	aggMap, err := l.usageAggregates(ctx, tag)
	if err != nil {
		return EquipmentUsage{}, err
	}
	if agg, ok := aggMap[tag]; ok {
		eu.Latest = agg.MaxReading
		eu.LatestDate = agg.MaxDate
		eu.HasUsage = true
	}
	return eu, nil
}

func (l *gormLedger) UsageHistory(ctx context.Context, tag string, limit int) ([]model.UsageLog, error) {
	var entries []model.UsageLog
	q := l.db.WithContext(ctx).Where("tag = ?", tag).Order("date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load usage history for %s: %w", tag, err)
	}
	return entries, nil
}

func (l *gormLedger) Tags(ctx context.Context) ([]string, error) {
	var tags []string
	err := l.db.WithContext(ctx).Model(&model.Equipment{}).
		Order("tag").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (l *gormLedger) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (l *gormLedger) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := l.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (l *gormLedger) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := l.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
