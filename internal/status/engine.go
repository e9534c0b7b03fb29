// Package status derives per-equipment maintenance status and
// dashboard-wide aggregates from usage readings.
package status

import (
	"strconv"
	"strings"
	"time"

	"fleetcare-backend/internal/sheet"
)

// Class is the maintenance urgency bucket of one equipment.
type Class string

const (
	// ClassNone marks equipment with no maintenance interval configured.
	ClassNone Class = "NONE"
	ClassOK   Class = "OK"
	// ClassWarning fires when usage reaches 90% of the interval or gets
	// within 20 units of it, whichever bound is reached first.
	ClassWarning  Class = "WARNING"
	ClassCritical Class = "CRITICAL"
)

// warningOffset is the fixed-margin half of the warning rule: long
// intervals warn 20 units before the limit even though 90% is further out.
const warningOffset = 20.0

// staleAfterDays flags equipment whose data stopped updating.
const staleAfterDays = 7

// odometerCategory marks distance-tracked equipment; everything else is
// treated as hour-metered.
const odometerCategory = "KM"

// TagUsage is the per-tag aggregation of normalized spreadsheet rows.
type TagUsage struct {
	Tag         string
	Category    string
	Interval    float64
	LastReading float64
	LastDate    time.Time
}

// Aggregate groups rows by tag. The last-service candidate is the
// reading of the row with the maximum date; when dates tie, the
// later-occurring source row wins. Category is the first non-empty
// activity value uppercased; interval is the first numeric value of the
// interval column, defaulting to 0 (no interval configured). A literal
// 0 in the column counts as that first value and is kept. Output order
// follows first appearance of each tag.
func Aggregate(rows []sheet.Row) []TagUsage {
	byTag := make(map[string]*TagUsage)
	intervalSet := make(map[string]bool)
	var order []string

	for _, row := range rows {
		u, ok := byTag[row.Tag]
		if !ok {
			u = &TagUsage{Tag: row.Tag}
			byTag[row.Tag] = u
			order = append(order, row.Tag)
			u.LastReading = row.Reading
			u.LastDate = row.Date
		} else if !row.Date.Before(u.LastDate) {
			// Equal dates resolve to the later source row.
			u.LastReading = row.Reading
			u.LastDate = row.Date
		}

		if u.Category == "" && row.Activity != "" {
			u.Category = strings.ToUpper(strings.TrimSpace(row.Activity))
		}
		if !intervalSet[row.Tag] && row.IntervalRaw != "" {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(row.IntervalRaw, ",", "."), 64); err == nil {
				u.Interval = v
				intervalSet[row.Tag] = true
			}
		}
	}

	out := make([]TagUsage, 0, len(order))
	for _, tag := range order {
		out = append(out, *byTag[tag])
	}
	return out
}

// Classify buckets one equipment given its interval, last-service
// reading and current reading. Negative usage (inconsistent data) is
// tolerated and lands in OK.
func Classify(interval, lastService, current float64) Class {
	if interval == 0 {
		return ClassNone
	}
	usage := current - lastService
	if usage >= interval {
		return ClassCritical
	}
	if usage >= max(interval*0.9, interval-warningOffset) {
		return ClassWarning
	}
	return ClassOK
}

// Snapshot is the derived, never-persisted status of one equipment.
type Snapshot struct {
	Tag         string    `json:"tag"`
	Category    string    `json:"category"`
	Interval    float64   `json:"interval"`
	LastService float64   `json:"lastService"`
	Current     float64   `json:"current"`
	Usage       float64   `json:"usage"`
	Percent     float64   `json:"percent"`
	Class       Class     `json:"status"`
	LastUpdate  time.Time `json:"lastUpdate,omitzero"`
}

// Input is one (equipment, latest usage) tuple from the ledger.
type Input struct {
	Tag         string
	Category    string
	Interval    float64
	LastService float64
	// Latest holds the max observed usage reading; HasUsage is false
	// when no usage entries exist, in which case the last-service
	// reading stands in as the current reading.
	Latest     float64
	HasUsage   bool
	LastUpdate time.Time
}

// Build computes the snapshot for one input tuple.
func Build(in Input) Snapshot {
	current := in.LastService
	if in.HasUsage {
		current = in.Latest
	}

	usage := current - in.LastService
	percent := 0.0
	if in.Interval > 0 {
		percent = usage / in.Interval * 100
	}

	return Snapshot{
		Tag:         in.Tag,
		Category:    in.Category,
		Interval:    in.Interval,
		LastService: in.LastService,
		Current:     current,
		Usage:       usage,
		Percent:     percent,
		Class:       Classify(in.Interval, in.LastService, current),
		LastUpdate:  in.LastUpdate,
	}
}

// BuildAll maps Build over a set of input tuples.
func BuildAll(inputs []Input) []Snapshot {
	out := make([]Snapshot, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, Build(in))
	}
	return out
}

// Summary is the dashboard-wide class count rollup.
type Summary struct {
	OK         int        `json:"OK"`
	Warning    int        `json:"WARNING"`
	Critical   int        `json:"CRITICAL"`
	NoInterval int        `json:"NONE"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// Summarize counts equipment per class and finds the most recent update
// date across all tags.
func Summarize(snaps []Snapshot) Summary {
	var s Summary
	for _, snap := range snaps {
		switch snap.Class {
		case ClassCritical:
			s.Critical++
		case ClassWarning:
			s.Warning++
		case ClassNone:
			s.NoInterval++
		default:
			s.OK++
		}
		if !snap.LastUpdate.IsZero() && (s.LastUpdate == nil || snap.LastUpdate.After(*s.LastUpdate)) {
			u := snap.LastUpdate
			s.LastUpdate = &u
		}
	}
	return s
}

// CriticalAlert is one equipment at or past its interval.
type CriticalAlert struct {
	Tag        string     `json:"tag"`
	Category   string     `json:"category"`
	Usage      float64    `json:"usage"`
	Interval   float64    `json:"interval"`
	Percent    float64    `json:"percent"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// UpcomingAlert is one equipment in the 90-99% band. This band is
// percentage-only on purpose: it feeds the alert list, while the
// WARNING class above additionally honors the fixed 20-unit margin.
// Both computations coexist.
type UpcomingAlert struct {
	Tag           string  `json:"tag"`
	Category      string  `json:"category"`
	Usage         float64 `json:"usage"`
	Interval      float64 `json:"interval"`
	Percent       float64 `json:"percent"`
	DaysRemaining int     `json:"daysRemaining"`
}

// StaleAlert is one equipment with no usage update for more than
// staleAfterDays calendar days, regardless of its status class.
type StaleAlert struct {
	Tag        string    `json:"tag"`
	Category   string    `json:"category"`
	DaysStale  int       `json:"daysStale"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// FleetStats is the dashboard-wide statistics block.
type FleetStats struct {
	TotalEquipment int     `json:"totalEquipment"`
	TotalHourMeter float64 `json:"totalHourMeter"`
	TotalOdometer  float64 `json:"totalOdometer"`
	Critical       int     `json:"critical"`
	Upcoming       int     `json:"upcoming"`
	Stale          int     `json:"stale"`
}

// Alerts is the classified alert payload for the dashboard.
type Alerts struct {
	Critical []CriticalAlert `json:"critical"`
	Upcoming []UpcomingAlert `json:"upcoming"`
	Stale    []StaleAlert    `json:"stale"`
	Stats    FleetStats      `json:"stats"`
}

// BuildAlerts splits snapshots into the critical (>= 100%), upcoming
// (90-99%) and stale (> 7 days without update as of now) buckets and
// accumulates fleet statistics.
func BuildAlerts(snaps []Snapshot, now time.Time) Alerts {
	a := Alerts{
		Critical: []CriticalAlert{},
		Upcoming: []UpcomingAlert{},
		Stale:    []StaleAlert{},
	}
	today := now.UTC().Truncate(24 * time.Hour)

	for _, snap := range snaps {
		a.Stats.TotalEquipment++
		if snap.Category == odometerCategory {
			a.Stats.TotalOdometer += snap.Current
		} else {
			a.Stats.TotalHourMeter += snap.Current
		}

		switch {
		case snap.Interval > 0 && snap.Percent >= 100:
			a.Critical = append(a.Critical, CriticalAlert{
				Tag:        snap.Tag,
				Category:   snap.Category,
				Usage:      snap.Usage,
				Interval:   snap.Interval,
				Percent:    snap.Percent,
				LastUpdate: nonZero(snap.LastUpdate),
			})
		case snap.Interval > 0 && snap.Percent >= 90:
			a.Upcoming = append(a.Upcoming, UpcomingAlert{
				Tag:           snap.Tag,
				Category:      snap.Category,
				Usage:         snap.Usage,
				Interval:      snap.Interval,
				Percent:       snap.Percent,
				DaysRemaining: daysRemaining(snap),
			})
		}

		if !snap.LastUpdate.IsZero() {
			if days := int(today.Sub(snap.LastUpdate.UTC().Truncate(24*time.Hour)).Hours() / 24); days > staleAfterDays {
				a.Stale = append(a.Stale, StaleAlert{
					Tag:        snap.Tag,
					Category:   snap.Category,
					DaysStale:  days,
					LastUpdate: snap.LastUpdate,
				})
			}
		}
	}

	a.Stats.Critical = len(a.Critical)
	a.Stats.Upcoming = len(a.Upcoming)
	a.Stats.Stale = len(a.Stale)
	return a
}

// daysRemaining is a rough countdown to the interval limit assuming a
// duty cycle of 8 hours/day for hour-metered equipment and 100 km/day
// for odometer-tracked equipment.
func daysRemaining(snap Snapshot) int {
	perDay := 8.0
	if snap.Category == odometerCategory {
		perDay = 100.0
	}
	d := int((snap.Interval - snap.Usage) / perDay)
	if d < 0 {
		return 0
	}
	return d
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
