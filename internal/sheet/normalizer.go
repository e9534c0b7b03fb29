// Package sheet parses fetched spreadsheet files into canonical row
// records: slugged headers, required-column validation, type coercion.
package sheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fleetcare-backend/internal/model"
)

// Row is one normalized usage observation from the primary sheet.
// Seq preserves original row order; it breaks ties between readings
// that share a date (the later row wins).
type Row struct {
	Tag         string
	Date        time.Time
	Reading     float64
	Activity    string // free-text category column, may be empty
	IntervalRaw string // raw cell of the interval ("tipo") column, may be empty
	Seq         int
}

// SchemaError reports required columns absent from the header row.
type SchemaError struct {
	Sheet   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sheet %q is missing required columns: %s", e.Sheet, strings.Join(e.Missing, ", "))
}

// Canonical column keys after slugging.
const (
	colTag      = "tag"
	colDate     = "data"
	colDateAlt  = "date"
	colReading  = "h_final"
	colActivity = "atividade"
	colInterval = "tipo"
)

// NormalizeTag canonicalizes an equipment tag: trimmed and uppercased.
// Idempotent by construction.
func NormalizeTag(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseUsage opens the workbook at path and normalizes the named sheet
// into Rows. headerRow is the zero-based index of the header row (rows
// above it are title/banner rows in the field exports). Rows missing
// any required field are dropped, not rejected.
func ParseUsage(path, sheetName string, headerRow int) ([]Row, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) <= headerRow {
		return nil, &SchemaError{Sheet: sheetName, Missing: []string{colTag, colDate, colReading}}
	}

	cols := indexHeaders(rows[headerRow])

	tagIdx, okTag := cols[colTag]
	dateIdx, okDate := cols[colDate]
	if !okDate {
		dateIdx, okDate = cols[colDateAlt]
	}
	readingIdx, okReading := cols[colReading]

	var missing []string
	if !okTag {
		missing = append(missing, colTag)
	}
	if !okDate {
		missing = append(missing, colDate)
	}
	if !okReading {
		missing = append(missing, colReading)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Sheet: sheetName, Missing: missing}
	}

	activityIdx, hasActivity := cols[colActivity]
	intervalIdx, hasInterval := cols[colInterval]

	var out []Row
	for i := headerRow + 1; i < len(rows); i++ {
		cells := rows[i]

		tag := NormalizeTag(cell(cells, tagIdx))
		dateRaw := strings.TrimSpace(cell(cells, dateIdx))
		readingRaw := strings.TrimSpace(cell(cells, readingIdx))
		if tag == "" || dateRaw == "" || readingRaw == "" {
			continue
		}

		date, ok := parseDate(dateRaw)
		if !ok {
			continue
		}

		row := Row{
			Tag:     tag,
			Date:    date,
			Reading: parseNumber(readingRaw), // non-numeric coerces to 0
			Seq:     i,
		}
		if hasActivity {
			row.Activity = strings.TrimSpace(cell(cells, activityIdx))
		}
		if hasInterval {
			row.IntervalRaw = strings.TrimSpace(cell(cells, intervalIdx))
		}
		out = append(out, row)
	}
	return out, nil
}

// ParseWorkOrders reads the secondary work-order sheet (header on the
// first row) into WorkOrder records. It is an independent failure
// domain: callers treat its error as a warning, never as a failure of
// the primary import.
func ParseWorkOrders(path, sheetName string) ([]model.WorkOrder, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := indexHeaders(rows[0])
	if _, ok := cols["equipamento"]; !ok {
		return nil, &SchemaError{Sheet: sheetName, Missing: []string{"equipamento"}}
	}

	get := func(cells []string, key string) string {
		idx, ok := cols[key]
		if !ok {
			return ""
		}
		return strings.TrimSpace(cell(cells, idx))
	}

	var out []model.WorkOrder
	for i := 1; i < len(rows); i++ {
		cells := rows[i]

		tag := NormalizeTag(get(cells, "equipamento"))
		if tag == "" {
			continue
		}

		scheduled := get(cells, colDate)
		if d, ok := parseDate(scheduled); ok {
			scheduled = d.Format("2006-01-02")
		}

		out = append(out, model.WorkOrder{
			Tag:               tag,
			OrderNumber:       get(cells, "n_os"),
			ScheduledDate:     scheduled,
			MaintenanceType:   get(cells, "tipo_de_manutencao"),
			Description:       get(cells, "falha_apresentada"),
			ExecutionNotes:    get(cells, "execucao"),
			ResponsibleParty:  get(cells, "responsavel_da_manutencao"),
			ReschedulingNotes: get(cells, "reprogramacao"),
			Status:            "REALIZADA",
		})
	}
	return out, nil
}

// indexHeaders slugs every header cell and maps it to its column index.
// The first occurrence of a duplicate key wins.
func indexHeaders(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := Slug(h)
		if key == "" {
			continue
		}
		if _, seen := cols[key]; !seen {
			cols[key] = i
		}
	}
	return cols
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02/01/06",
	"01-02-06",
	"2/1/2006",
	"2006/01/02",
}

// excelEpoch is day zero of the 1900 date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseDate accepts the date formats seen in field exports plus raw
// Excel serial numbers.
func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		d := excelEpoch.AddDate(0, 0, int(serial))
		return d, true
	}
	return time.Time{}, false
}

// parseNumber coerces a cell to a float. Comma decimal separators are
// accepted; anything unparseable becomes 0 per the import contract.
func parseNumber(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
